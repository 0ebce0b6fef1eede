// executor.go implements the §4.H Executor: it walks a compiled schedule's
// TaskGroups, running Exclusive groups on the driver thread and fanning
// Send members of a Concurrent group onto a worker pool while Unsend
// members run alongside them on the driver thread, joining before the next
// group starts.
package schedule

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Voskan/ecsrt/resource"
	"github.com/Voskan/ecsrt/schedule/internal/workerpool"
)

// Executor runs a Scheduler's compiled TaskGroups against a *resource.Store.
// Construct one with NewExecutor; it is safe to reuse across many Run
// calls as long as the Scheduler it was built from stays in sync.
type Executor struct {
	sched *Scheduler
	pool  *workerpool.Pool
}

// ExecutorOption configures an Executor at construction time.
type ExecutorOption func(*Executor)

// WithPool overrides the process-global worker pool with a scoped one,
// current-thread-override style: every Run call on this Executor uses
// pool instead of workerpool.Default().
func WithPool(pool *workerpool.Pool) ExecutorOption {
	return func(e *Executor) {
		if pool != nil {
			e.pool = pool
		}
	}
}

// NewExecutor builds an Executor over s, using the process-global worker
// pool unless WithPool overrides it.
func NewExecutor(s *Scheduler, opts ...ExecutorOption) *Executor {
	e := &Executor{sched: s}
	for _, opt := range opts {
		opt(e)
	}
	if e.pool == nil {
		e.pool = workerpool.Default()
	}
	return e
}

// panicValue carries a recovered panic across the goroutine boundary so it
// can be re-raised at join time rather than crashing the process mid-group
// (spec.md §4.H: "Panics in a spawned task propagate on join of the
// execution, not mid-frame").
type panicValue struct{ v any }

func (p panicValue) Error() string { return fmt.Sprintf("schedule: system panicked: %v", p.v) }

func runCaptured(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicValue{v: r}
		}
	}()
	fn()
	return nil
}

// Run executes every compiled task group, in order, against store. It
// requires store's full exclusive access, since at least one group may be
// Exclusive; use RunShared when the compiled schedule has no exclusive or
// unsend systems and only a SendView is available.
func (e *Executor) Run(ctx context.Context, store *resource.Store) error {
	for _, group := range e.sched.Groups() {
		if err := e.runGroup(ctx, group, store); err != nil {
			return err
		}
	}
	return nil
}

// RunShared executes every compiled task group using only a SendView. It
// fails fast if the schedule contains any Exclusive group or any Unsend
// system, since both require the un-promoted *resource.Store.
func (e *Executor) RunShared(ctx context.Context, view resource.SendView) error {
	for _, group := range e.sched.Groups() {
		if group.Exclusive != nil {
			return fmt.Errorf("schedule: RunShared cannot run exclusive system %q without a *resource.Store", group.Exclusive.Name)
		}
		for _, c := range group.Concurrent {
			if !c.Send {
				return fmt.Errorf("schedule: RunShared cannot run unsend system %q without a *resource.Store", c.Name)
			}
		}
		if err := e.runConcurrentGroup(ctx, nil, view, group.Concurrent); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runGroup(ctx context.Context, group TaskGroup, store *resource.Store) error {
	if group.Exclusive != nil {
		return runCaptured(func() { group.Exclusive.RunExclusive(store) })
	}
	return e.runConcurrentGroup(ctx, store, resource.Promote(store), group.Concurrent)
}

func (e *Executor) runConcurrentGroup(ctx context.Context, store *resource.Store, view resource.SendView, entries []CompiledSystem) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := e.pool.Sem()

	var unsend []CompiledSystem
	for _, c := range entries {
		if !c.Send {
			unsend = append(unsend, c)
			continue
		}
		c := c
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			return runCaptured(func() { c.RunConcurrent(view) })
		})
	}

	// Unsend systems never leave the driver thread; they run here against
	// the un-promoted store, while the Send systems above are already in
	// flight on the pool. The store's borrow cells arbitrate any overlap.
	for _, c := range unsend {
		c := c
		if err := runCaptured(func() { c.RunUnsend(store) }); err != nil {
			_ = g.Wait()
			return err
		}
	}

	return g.Wait()
}

// RunNextSystemLocal executes a single system from the task group at
// index, entryIndex (0 for an Exclusive group) on the current goroutine,
// bypassing the pool entirely. It is the single-stepping API spec.md
// §4.H names for debugging and deterministic replay in tests.
func (e *Executor) RunNextSystemLocal(store *resource.Store, groupIndex, entryIndex int) error {
	groups := e.sched.Groups()
	if groupIndex < 0 || groupIndex >= len(groups) {
		return fmt.Errorf("schedule: group index %d out of range (%d groups)", groupIndex, len(groups))
	}
	group := groups[groupIndex]
	if group.Exclusive != nil {
		if entryIndex != 0 {
			return fmt.Errorf("schedule: exclusive group %d has only entry 0", groupIndex)
		}
		return runCaptured(func() { group.Exclusive.RunExclusive(store) })
	}
	if entryIndex < 0 || entryIndex >= len(group.Concurrent) {
		return fmt.Errorf("schedule: entry index %d out of range (%d entries)", entryIndex, len(group.Concurrent))
	}
	c := group.Concurrent[entryIndex]
	if !c.Send {
		return runCaptured(func() { c.RunUnsend(store) })
	}
	view := resource.Promote(store)
	return runCaptured(func() { c.RunConcurrent(view) })
}
