// main.go implements the ecsrt-schedule-demo CLI: it builds a small ECS
// world and a scheduler wired with a handful of systems across a couple of
// phases, compiles the schedule, runs it through the Executor, and reports
// whether the run completed. It also supports periodic re-run (-watch) and
// a Graphviz dot dump of the compiled schedule (-dot, or PULZ_DUMP_SCHEDULE
// if -dot is unset).
//
// Build-time flag: `-ldflags "-X main.version=vX.Y.Z"`.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Voskan/ecsrt/ecs"
	"github.com/Voskan/ecsrt/ecs/query"
	"github.com/Voskan/ecsrt/resource"
	"github.com/Voskan/ecsrt/schedule"
)

var version = "dev"

type options struct {
	dotPath  string
	watch    bool
	interval time.Duration
	conflict bool
	version  bool
}

func parseFlags() *options {
	opts := &options{}
	flag.StringVar(&opts.dotPath, "dot", "", "write a Graphviz dot dump of the compiled schedule to this path (defaults to $PULZ_DUMP_SCHEDULE)")
	flag.BoolVar(&opts.watch, "watch", false, "re-run the schedule on an interval instead of once")
	flag.DurationVar(&opts.interval, "interval", time.Second, "interval between runs in -watch mode")
	flag.BoolVar(&opts.conflict, "conflict", false, "build a deliberately conflicting demo schedule, to exercise the conflict dump path")
	flag.BoolVar(&opts.version, "version", false, "print the version and exit")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	if opts.version {
		fmt.Println(version)
		return
	}

	if opts.dotPath != "" {
		os.Setenv("PULZ_DUMP_SCHEDULE", opts.dotPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	world, sched := buildDemo(opts.conflict)

	if err := sched.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "schedule compilation failed:", err)
		if path := os.Getenv("PULZ_DUMP_SCHEDULE"); path != "" {
			fmt.Fprintln(os.Stderr, "dot dump written to", path)
		}
		os.Exit(1)
	}

	exec := schedule.NewExecutor(sched)

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if err := runOnce(ctx, exec, world); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return
			}
		}
	}

	if err := runOnce(ctx, exec, world); err != nil {
		fatal(err)
	}
}

// buildDemo wires two phases worth of systems around a tiny ECS world: a
// movement phase (two disjoint Send systems over Position/Velocity plus one
// Unsend system touching a shared Frame resource), and a render phase that
// must run after movement completes. With -conflict, the render phase
// instead gets two systems that both declare exclusive access to the same
// resource with no ordering between them, so Init fails and the conflict
// dump path runs.
func buildDemo(conflict bool) (*ecs.World, *schedule.Scheduler) {
	w := ecs.NewWorld()
	pos := ecs.RegisterComponent[position](w, ecs.Dense)
	vel := ecs.RegisterComponent[velocity](w, ecs.Dense)

	for i := 0; i < 64; i++ {
		i := i
		w.WithEntity(func(m *ecs.EntityMut) {
			ecs.Insert(m, pos, position{X: float64(i)})
			ecs.Insert(m, vel, velocity{DX: 1})
		})
	}

	frameID := resource.InsertUnsend(w.Resources(), frameCounter{})

	posVelQuery := query.New2[position, velocity](w, pos, vel, query.Exclusive, query.Shared)
	qAccess := posVelQuery.Access

	s := schedule.NewScheduler()

	type MovementPhase struct{}
	type RenderPhase struct{}
	movement := schedule.Label[MovementPhase]()
	render := schedule.Label[RenderPhase]()
	s.AddPhaseDependency(movement, render)

	integrate := s.AddConcurrentSystem("integrate_velocity", schedule.ResourceAccess{
		Shared:    qAccess.SharedIDs,
		Exclusive: qAccess.ExclusiveIDs,
	}, func(resource.SendView) {
		posVelQuery.Each(w, func(_ ecs.Entity, p *position, v *velocity) {
			p.X += v.DX
		})
	})
	integrate.IntoPhase(movement)

	var frameAccess schedule.ResourceAccess
	frameAccess.Exclusive.Insert(int(frameID.Untyped()))
	tickFrame := s.AddUnsendSystem("tick_frame", frameAccess, func(store *resource.Store) {
		ref, err := resource.BorrowResMut(store, frameID)
		if err != nil {
			return
		}
		ref.Get().frames++
		ref.Release()
	})
	tickFrame.IntoPhase(movement)

	if conflict {
		rA := s.AddConcurrentSystem("render_a", frameAccess, func(resource.SendView) {})
		rA.IntoPhase(render)
		rB := s.AddConcurrentSystem("render_b", frameAccess, func(resource.SendView) {})
		rB.IntoPhase(render)
		return w, s
	}

	present := s.AddConcurrentSystem("present", schedule.ResourceAccess{}, func(resource.SendView) {})
	present.IntoPhase(render)

	return w, s
}

type position struct{ X float64 }
type velocity struct{ DX float64 }

// frameCounter is driver-thread-only state: registered Unsend, mutated by
// the tick_frame system under its declared exclusive access.
type frameCounter struct{ frames int64 }

func runOnce(ctx context.Context, exec *schedule.Executor, w *ecs.World) error {
	if err := exec.Run(ctx, w.Resources()); err != nil {
		return err
	}
	fmt.Println("schedule ran to completion")
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "ecsrt-schedule-demo:", err)
	os.Exit(1)
}
