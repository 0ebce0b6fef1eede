package resource

// options.go mirrors Voskan-arena-cache/pkg/config.go's functional-option
// pattern: every knob is optional, defaults are safe no-ops, and
// applyOptions is the single place options get folded into the receiver.

import (
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger plugs an external zap.Logger. The store never logs on the hot
// path (GetCopy/BorrowRes/BorrowResMut); only borrow conflicts are logged.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection for this Store.
// Passing nil disables metrics (default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(s *Store) {
		if reg != nil {
			s.metrics = newPromMetrics(reg)
		}
	}
}

func applyOptions(s *Store, opts []Option) {
	for _, opt := range opts {
		opt(s)
	}
}
