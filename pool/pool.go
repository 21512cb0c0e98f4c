// Package pool runs a batch of independent tasks with a bound on how many
// execute at once, collecting results in input order. It is how callers
// rate-limit a burst of fetches without hand-rolling goroutine bookkeeping.
package pool

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Task produces one value. Consumed exactly once; never retried internally.
type Task[T any] func(ctx context.Context) (T, error)

// Result holds the outcome for the task at the same index in the input.
type Result[T any] struct {
	Value T
	Err   error
}

// Run executes tasks with at most limit running simultaneously and returns
// one Result per task, in input order regardless of completion order.
//
// Failures are isolated: a task's error lands in its own slot and the other
// tasks keep running. If ctx is cancelled, tasks not yet started record
// ctx.Err() in their slot; tasks already running settle on their own.
// limit >= len(tasks) behaves like running everything concurrently; an empty
// task list returns an empty slice without suspending.
func Run[T any](ctx context.Context, tasks []Task[T], limit int64) ([]Result[T], error) {
	if limit <= 0 {
		return nil, fmt.Errorf("pool: limit must be > 0, got %d", limit)
	}
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results, nil
	}

	sem := semaphore.NewWeighted(limit)
	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			// ctx cancelled; everything not yet started fails in place
			for j := i; j < len(tasks); j++ {
				results[j].Err = err
			}
			break
		}
		go func(i int, task Task[T]) {
			defer sem.Release(1)
			results[i].Value, results[i].Err = task(ctx)
		}(i, task)
	}

	// drain: all started tasks have settled once the full weight is held
	if err := sem.Acquire(context.Background(), limit); err != nil {
		return nil, err
	}
	return results, nil
}

// Values unwraps a Result slice, returning the first error encountered
// (by index) alongside the values collected so far.
func Values[T any](results []Result[T]) ([]T, error) {
	out := make([]T, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, r.Err
		}
		out[i] = r.Value
	}
	return out, nil
}

// All is the fail-fast variant of Run: the first task error cancels the
// remaining tasks' context and is returned for the whole batch. Output order
// matches input order. Use Run when per-task isolation is wanted.
func All[T any](ctx context.Context, tasks []Task[T], limit int) ([]T, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("pool: limit must be > 0, got %d", limit)
	}
	out := make([]T, len(tasks))
	if len(tasks) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			v, err := task(gctx)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
