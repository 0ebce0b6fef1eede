package schedule

// options.go mirrors resource/options.go's functional-option pattern: every
// knob is optional, defaults are safe no-ops.

import "go.uber.org/zap"

// Logger is the narrow logging surface the Scheduler needs; *zap.Logger
// (via WithLogger) and *zap.SugaredLogger both satisfy a thin adapter, but
// most callers just pass zap directly through zapLogger below.
type Logger interface {
	Error(msg string, fields ...zap.Field)
}

type zapLogger struct{ l *zap.Logger }

func (z zapLogger) Error(msg string, fields ...zap.Field) { z.l.Error(msg, fields...) }

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithLogger plugs an external zap.Logger for resource-conflict
// diagnostics. Phase-graph cycles are returned as errors and are not logged.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = zapLogger{l: l}
		}
	}
}

// WithMetrics enables Prometheus metrics collection for this Scheduler.
func WithMetrics(m Metrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

func applyOptions(s *Scheduler, opts []Option) {
	for _, opt := range opts {
		opt(s)
	}
}
