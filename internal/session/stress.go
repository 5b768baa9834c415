package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

var ErrStressMismatch = errors.New("stress: observed value differs from last write")

type StressResult struct {
	Workers  int
	Ops      int
	Duration time.Duration
}

func stressKey(worker int) string {
	return fmt.Sprintf("worker-%d.stress.test", worker)
}

func stressValue(worker int, op int) string {
	return fmt.Sprintf("%d:%d", worker, op)
}

// Stress runs workers goroutines, each interleaving ops store/lookup pairs
// on its own key. Every lookup must see the worker's latest store, and once
// all workers finish each key must hold its final write.
func (s *Session) Stress(ctx context.Context, workers int, ops int) (StressResult, error) {
	if workers < 1 || ops < 1 {
		return StressResult{}, fmt.Errorf("stress: workers and ops must be positive, got %d and %d", workers, ops)
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			key := stressKey(w)
			for i := 0; i < ops; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}

				want := stressValue(w, i)
				if err := s.Store(key, want); err != nil {
					return err
				}

				record, found, err := s.Lookup(key)
				if err != nil {
					return err
				}
				if !found || record.Info() != want {
					return fmt.Errorf("%w: %s", ErrStressMismatch, key)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return StressResult{}, err
	}

	for w := 0; w < workers; w++ {
		record, found, err := s.Lookup(stressKey(w))
		if err != nil {
			return StressResult{}, err
		}
		if !found || record.Info() != stressValue(w, ops-1) {
			return StressResult{}, fmt.Errorf("%w: %s final value", ErrStressMismatch, stressKey(w))
		}
	}

	result := StressResult{
		Workers:  workers,
		Ops:      ops,
		Duration: time.Since(start),
	}
	s.logger.Info("stress finished", "workers", workers, "ops", ops, "duration", result.Duration)
	return result, nil
}
