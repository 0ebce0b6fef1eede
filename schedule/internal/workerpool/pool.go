// Package workerpool provides the bounded concurrency primitive the
// Executor fans Send systems out onto: a process-global pool, lazily
// constructed and sized from PULZ_SCHEDULER_NUM_THREADS (spec.md §6), plus
// scoped pools an Executor can be given instead (schedule.WithPool).
//
// The pool itself holds no goroutines; it is a semaphore.Weighted bound
// paired with an errgroup.Group per execution, mirroring
// Voskan-arena-cache/pkg/config.go's lazily-defaulted, option-overridable
// knobs (WithLogger/WithMetrics) generalised from "optional collaborator"
// to "optional concurrency bound".
package workerpool

import (
	"os"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many Send systems may run concurrently across all of a
// process's scheduler executions sharing it.
type Pool struct {
	sem *semaphore.Weighted
	n   int64
}

// New constructs a Pool with exactly n worker slots. n<=0 is treated as
// runtime.GOMAXPROCS(0).
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n)), n: int64(n)}
}

// Size reports the pool's worker slot count.
func (p *Pool) Size() int { return int(p.n) }

// Sem exposes the underlying weighted semaphore so the Executor can
// Acquire/Release around each spawned system without the Pool needing to
// know anything about errgroup or systems.
func (p *Pool) Sem() *semaphore.Weighted { return p.sem }

var (
	defaultOnce sync.Once
	defaultPool *Pool
)

// Default returns the process-global pool, constructing it on first use
// from PULZ_SCHEDULER_NUM_THREADS if set, or GOMAXPROCS(0) otherwise.
func Default() *Pool {
	defaultOnce.Do(func() {
		defaultPool = New(sizeFromEnv())
	})
	return defaultPool
}

func sizeFromEnv() int {
	v := os.Getenv("PULZ_SCHEDULER_NUM_THREADS")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// resetDefaultForTest lets tests observe a fresh PULZ_SCHEDULER_NUM_THREADS
// reading; it is only called from this module's own test files.
func resetDefaultForTest() {
	defaultOnce = sync.Once{}
	defaultPool = nil
}
