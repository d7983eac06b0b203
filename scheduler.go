package gantry

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// startAll starts every pending container per its policy and rebuilds the
// keeper around the running forms, in the original declaration order.
//
// Relaxed containers start concurrently on their own goroutines. Strict
// containers start sequentially on this goroutine, in declaration order, and
// a strict failure prevents every later strict container from starting.
// Relaxed containers already in flight are always joined, never abandoned;
// on failure their successes are discarded from the result while the caller
// keeps every created container in its cleanup set.
//
// When both classes fail, the strict error wins. Within a class the first
// error in declaration order wins, regardless of completion timing.
func startAll(ctx context.Context, pending keeper[*PendingContainer]) (keeper[*RunningContainer], error) {
	type slot struct {
		rc  *RunningContainer
		err error
	}

	// Each container writes into its declaration-order slot, so the result
	// order never depends on completion timing.
	slots := make([]slot, len(pending.kept))
	var relaxed errgroup.Group

	for i, p := range pending.kept {
		if p.StartPolicy != PolicyRelaxed {
			continue
		}
		i, p := i, p
		relaxed.Go(func() error {
			rc, err := p.start(ctx)
			slots[i] = slot{rc: rc, err: err}
			return err
		})
	}

	var strictErr error
	for i, p := range pending.kept {
		if p.StartPolicy != PolicyStrict {
			continue
		}
		rc, err := p.start(ctx)
		slots[i] = slot{rc: rc, err: err}
		if err != nil {
			strictErr = err
			break
		}
	}

	// Drain the relaxed class even after a strict failure so no goroutine
	// outlives the run. The group's own first-error is ignored: error
	// priority is positional, not temporal.
	_ = relaxed.Wait()

	if strictErr != nil {
		return keeper[*RunningContainer]{}, strictErr
	}
	for _, s := range slots {
		if s.err != nil {
			return keeper[*RunningContainer]{}, s.err
		}
	}

	running := make([]*RunningContainer, len(pending.kept))
	for i, s := range slots {
		running[i] = s.rc
	}
	return rekey(pending, running)
}
