package core

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// WriteResult is the settled write for one decision.
type WriteResult struct {
	ID     string
	Action Action
	// Err is a *WriteError, nil on success and for skips.
	Err error
}

// Write inserts or updates one record. Skips are a no-op.
// A failure is returned as a *WriteError naming the id.
func Write(ctx context.Context, st Store, rec Record, action Action) error {
	var err error
	switch action {
	case ActionSkip:
		return nil
	case ActionInsert:
		err = st.Insert(ctx, rec)
	case ActionUpdate:
		err = st.Update(ctx, rec)
	default:
		err = fmt.Errorf("unsupported action %q", action)
	}
	if err != nil {
		return &WriteError{ID: rec.ID, Action: action, Err: err}
	}
	return nil
}

// writeAll performs every non-skip decision with at most concurrency writes
// in flight. Results are indexed like decisions regardless of completion
// order. A failed or panicking write never stops the others. Once ctx is
// done, remaining writes fail with the context error instead of running.
func writeAll(ctx context.Context, st Store, decisions []Decision, defaults AttributeDefaults, concurrency int, onWritten func(done int)) []WriteResult {
	results := make([]WriteResult, len(decisions))

	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))

	var done atomic.Int64
	for i, d := range decisions {
		results[i] = WriteResult{ID: d.Vehicle.ID, Action: d.Action}
		if d.Action == ActionSkip {
			continue
		}

		g.Go(func() error {
			results[i].Err = writeOne(ctx, st, defaults.Apply(d.Vehicle), d.Action)
			if onWritten != nil {
				onWritten(int(done.Add(1)))
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func writeOne(ctx context.Context, st Store, rec Record, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &WriteError{ID: rec.ID, Action: action, Err: fmt.Errorf("store panic: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return &WriteError{ID: rec.ID, Action: action, Err: err}
	}
	return Write(ctx, st, rec, action)
}
