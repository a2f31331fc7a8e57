// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pdiddy/property-extractor/internal/dispatch"
	"github.com/pdiddy/property-extractor/pkg/types"
)

const (
	ModeSingle      = "single"
	ModeDistributed = "distributed"
)

// UnitProcessor processes work units. *Processor is the production
// implementation.
type UnitProcessor interface {
	Process(ctx context.Context, unit types.WorkUnit) (types.UnitResult, error)
	ShouldSkip(unit types.WorkUnit) bool
}

// Summary counts unit outcomes for one run.
type Summary struct {
	Mode      string
	Total     int
	Completed int
	Extracted int
	Skipped   int
	Cancelled int
	TimedOut  int
	Failed    int
}

// HasFailures reports whether any unit failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

func (s *Summary) add(r types.UnitResult) {
	s.Completed++
	switch r.Status {
	case types.StatusExtracted:
		s.Extracted++
	case types.StatusSkipped:
		s.Skipped++
	case types.StatusCancelled:
		s.Cancelled++
	case types.StatusTimedOut:
		s.TimedOut++
	default:
		s.Failed++
	}
}

// Coordinator enumerates a document directory and drives every unit
// through a UnitProcessor, either in order or through a dispatch.Primary.
type Coordinator struct {
	proc    UnitProcessor
	primary dispatch.Primary
	hooks   *RunHooks
	out     io.Writer
	logger  *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithPrimary distributes units to the primary's workers instead of
// processing them in this goroutine.
func WithPrimary(p dispatch.Primary) CoordinatorOption {
	return func(c *Coordinator) { c.primary = p }
}

// WithHooks sets the run lifecycle hooks.
func WithHooks(h *RunHooks) CoordinatorOption {
	return func(c *Coordinator) { c.hooks = h }
}

// WithOutput sets where per-unit status lines and the summary are printed.
func WithOutput(w io.Writer) CoordinatorOption {
	return func(c *Coordinator) { c.out = w }
}

// WithCoordinatorLogger sets the coordinator's logger.
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator returns a Coordinator that processes units with proc.
func NewCoordinator(proc UnitProcessor, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{proc: proc, out: io.Discard, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes the documents in dir. When maxUnits > 0 exactly the first
// maxUnits enumerated documents are considered. Unit failures are counted
// in the summary; Run returns an error only when the run itself cannot
// continue.
func (c *Coordinator) Run(ctx context.Context, dir string, maxUnits int) (Summary, error) {
	summary := Summary{Mode: ModeSingle}
	if c.primary != nil {
		summary.Mode = ModeDistributed
		defer c.release(ctx)
	}

	if c.hooks != nil {
		if err := c.hooks.OnRunStart(ctx); err != nil {
			return summary, err
		}
	}

	units, err := ListWorkUnits(dir, maxUnits)
	if err != nil {
		return summary, err
	}
	summary.Total = len(units)
	c.logger.Info("starting run", "mode", summary.Mode, "documents", len(units), "dir", dir)

	if c.primary != nil {
		err = c.runDistributed(ctx, units, &summary)
	} else {
		err = c.runSequential(ctx, units, &summary)
	}
	if err != nil {
		return summary, err
	}

	if c.hooks != nil {
		c.hooks.OnRunEnd(ctx, summary)
	}
	fmt.Fprintf(c.out, "\nRun summary: %d extracted, %d skipped, %d cancelled, %d timed out, %d failed (total: %d)\n",
		summary.Extracted, summary.Skipped, summary.Cancelled, summary.TimedOut, summary.Failed, summary.Total)
	return summary, nil
}

func (c *Coordinator) runSequential(ctx context.Context, units []types.WorkUnit, summary *Summary) error {
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := runUnit(ctx, c.proc, unit)
		if err != nil {
			return err
		}
		c.complete(ctx, result, summary)
	}
	return nil
}

// complete records a finished unit and reports progress.
func (c *Coordinator) complete(ctx context.Context, r types.UnitResult, summary *Summary) {
	summary.add(r)
	if r.Status == types.StatusFailed {
		c.logger.Error("processing document", "document", r.Path, "error", r.Error)
	}
	c.report(r)
	if c.hooks != nil {
		c.hooks.OnProgress(ctx, summary.Completed)
	}
}

func (c *Coordinator) report(r types.UnitResult) {
	switch r.Status {
	case types.StatusSkipped:
		fmt.Fprintf(c.out, "skipped:   %s (store exists)\n", r.Base)
	case types.StatusFailed:
		fmt.Fprintf(c.out, "failed:    %s (%s)\n", r.Base, r.Error)
	case types.StatusCancelled:
		fmt.Fprintf(c.out, "cancelled: %s (rejected by validator)\n", r.Base)
	case types.StatusTimedOut:
		fmt.Fprintf(c.out, "timed out: %s\n", r.Base)
	default:
		fmt.Fprintf(c.out, "extracted: %s (%d records, %s)\n", r.Base, r.Records, r.Elapsed.Round(time.Millisecond))
	}
}

// runUnit is the failure boundary around one unit: processing errors and
// panics become failed results. Only cancellation of ctx is returned as an
// error.
func runUnit(ctx context.Context, proc UnitProcessor, unit types.WorkUnit) (result types.UnitResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = failed(unit, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()

	result, err = proc.Process(ctx, unit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return failed(unit, err), ctxErr
		}
		return failed(unit, err), nil
	}
	return result, nil
}

func failed(unit types.WorkUnit, err error) types.UnitResult {
	return types.UnitResult{
		Path:   unit.Path,
		Base:   unit.Base,
		Status: types.StatusFailed,
		Error:  err.Error(),
	}
}
