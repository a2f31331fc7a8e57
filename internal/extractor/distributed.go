// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/property-extractor/internal/dispatch"
	"github.com/pdiddy/property-extractor/pkg/types"
)

// errNoWorkers is recorded for units left when every worker has gone.
var errNoWorkers = errors.New("no live worker")

// runDistributed hands units to the primary's workers. Each worker gets one
// unit up front; a worker that reports a completion is immediately given
// the next unit. Units whose store already exists are counted as skipped
// without being dispatched.
func (c *Coordinator) runDistributed(ctx context.Context, units []types.WorkUnit, summary *Summary) error {
	n := c.primary.Workers()
	queue := append([]types.WorkUnit(nil), units...)
	live := make([]bool, n)
	for i := range live {
		live[i] = true
	}
	inflight := make(map[int]types.WorkUnit, n)

	// assign gives worker w the next unit. It reports false when the queue
	// is empty or the worker could not be reached; in the latter case the
	// unit stays queued.
	assign := func(w int) (bool, error) {
		for len(queue) > 0 {
			unit := queue[0]
			if c.proc.ShouldSkip(unit) {
				queue = queue[1:]
				c.complete(ctx, types.UnitResult{Path: unit.Path, Base: unit.Base, Status: types.StatusSkipped}, summary)
				continue
			}
			if err := c.primary.Send(ctx, w, dispatch.Assign(unit.Path)); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return false, ctxErr
				}
				c.logger.Warn("worker unreachable", "worker", w, "error", err)
				live[w] = false
				return false, nil
			}
			queue = queue[1:]
			inflight[w] = unit
			c.logger.Debug("assigned document", "worker", w, "document", unit.Path)
			return true, nil
		}
		return false, nil
	}

	// fill assigns work to every live idle worker.
	fill := func() error {
		for w := 0; w < n && len(queue) > 0; w++ {
			if _, busy := inflight[w]; busy || !live[w] {
				continue
			}
			if _, err := assign(w); err != nil {
				return err
			}
		}
		return nil
	}

	if err := fill(); err != nil {
		return err
	}

	for len(inflight) > 0 {
		msg, err := c.primary.Recv(ctx)
		if errors.Is(err, dispatch.ErrClosed) {
			c.logger.Error("all workers gone", "outstanding", len(inflight))
			break
		}
		if err != nil {
			return err
		}
		if msg.Kind != dispatch.KindCompleted {
			c.logger.Warn("unexpected message from worker", "worker", msg.Worker, "kind", msg.Kind)
			continue
		}

		w := msg.Worker
		unit, ok := inflight[w]
		if !ok {
			c.logger.Warn("completion from idle worker", "worker", w)
			continue
		}
		delete(inflight, w)

		result := failed(unit, errors.New("empty completion"))
		if msg.Result != nil {
			result = *msg.Result
		}
		if result.Error == dispatch.ErrWorkerGone.Error() {
			live[w] = false
		}
		c.complete(ctx, result, summary)

		if live[w] {
			if _, err := assign(w); err != nil {
				return err
			}
		}
		if err := fill(); err != nil {
			return err
		}
	}

	for w, unit := range inflight {
		c.complete(ctx, failed(unit, fmt.Errorf("worker %d: %w", w, dispatch.ErrWorkerGone)), summary)
	}
	for _, unit := range queue {
		c.complete(ctx, failed(unit, errNoWorkers), summary)
	}
	return nil
}

// release tells every worker to exit.
func (c *Coordinator) release(ctx context.Context) {
	for w := range c.primary.Workers() {
		if err := c.primary.Send(ctx, w, dispatch.Exit()); err != nil {
			c.logger.Debug("sending exit", "worker", w, "error", err)
		}
	}
}

// ServeWorker runs the worker side of the protocol until the primary sends
// Exit or the channel closes. Every assignment is answered with exactly one
// completion; processing errors and panics are reported as failed results.
func ServeWorker(ctx context.Context, w dispatch.Worker, proc UnitProcessor, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		msg, err := w.Recv(ctx)
		if errors.Is(err, dispatch.ErrClosed) {
			logger.Debug("dispatch channel closed, worker exiting")
			return nil
		}
		if err != nil {
			return err
		}

		switch msg.Kind {
		case dispatch.KindExit:
			logger.Debug("exit received, worker exiting")
			return nil
		case dispatch.KindAssign:
			unit := types.NewWorkUnit(msg.Path)
			result, runErr := runUnit(ctx, proc, unit)
			if result.Status == types.StatusFailed {
				logger.Error("processing document", "document", unit.Path, "error", result.Error)
			}
			if err := w.Send(ctx, dispatch.Completed(result)); err != nil {
				return fmt.Errorf("reporting %s: %w", unit.Path, err)
			}
			if runErr != nil {
				return runErr
			}
		default:
			logger.Warn("unexpected message from primary", "kind", msg.Kind)
		}
	}
}

// RunLocal runs a distributed extraction inside this process: a primary
// and the given number of goroutine workers connected by an in-memory
// channel.
func RunLocal(ctx context.Context, proc UnitProcessor, workers int, dir string, maxUnits int, opts ...CoordinatorOption) (Summary, error) {
	primary, ws := dispatch.NewLocal(workers)
	c := NewCoordinator(proc, append(opts, WithPrimary(primary))...)

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range ws {
		g.Go(func() error {
			defer w.Close()
			return ServeWorker(gctx, w, proc, c.logger)
		})
	}

	var summary Summary
	g.Go(func() error {
		var err error
		summary, err = c.Run(gctx, dir, maxUnits)
		return err
	})

	err := g.Wait()
	return summary, err
}
