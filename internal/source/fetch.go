package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result is the settled outcome of one fetch.
// Grid is empty (never nil-dereferenced) when Err is set.
type Result struct {
	Source   Source
	Grid     Grid
	Err      error
	Duration time.Duration
}

// Failed reports whether the fetch errored.
func (r Result) Failed() bool {
	return r.Err != nil
}

// FetchAll fetches every source concurrently and waits for all of them to
// settle. A failed source yields an empty grid and a *FetchError in its
// Result; FetchAll itself never fails. Each fetch gets its own timeout when
// perFetch is positive. Results are returned in the order of sources.
func FetchAll(ctx context.Context, p Provider, sources []Source, perFetch time.Duration) []Result {
	results := make([]Result, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			results[i] = fetchOne(ctx, p, src, perFetch)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// fetchOne returns when the provider answers or ctx ends, whichever comes
// first. A provider that ignores ctx is left to finish in the background and
// its late answer is discarded.
func fetchOne(ctx context.Context, p Provider, src Source, perFetch time.Duration) (res Result) {
	start := time.Now()
	res.Source = src
	defer func() { res.Duration = time.Since(start) }()

	if perFetch > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, perFetch)
		defer cancel()
	}

	type answer struct {
		grid Grid
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- answer{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		grid, err := p.Fetch(ctx, src)
		done <- answer{grid: grid, err: err}
	}()

	var got answer
	select {
	case got = <-done:
		if got.err == nil && ctx.Err() != nil {
			got.err = ctx.Err()
		}
	case <-ctx.Done():
		got.err = ctx.Err()
	}

	if got.err != nil {
		res.Grid = Grid{}
		var fe *FetchError
		if errors.As(got.err, &fe) {
			res.Err = got.err
		} else {
			res.Err = &FetchError{Source: src.ID, Err: got.err}
		}
		return res
	}

	res.Grid = normalize(got.grid)
	return res
}

// normalize guarantees a non-nil grid with non-nil rows.
func normalize(g Grid) Grid {
	if g == nil {
		return Grid{}
	}
	for i, row := range g {
		if row == nil {
			g[i] = []string{}
		}
	}
	return g
}
