package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewWorkerPool(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pool with max workers", func(t *testing.T) {
		pool := NewWorkerPool(ctx, 4, false)
		if pool.maxWorkers != 4 {
			t.Errorf("expected maxWorkers=4, got %d", pool.maxWorkers)
		}
		if pool.failFast {
			t.Error("expected failFast=false")
		}
	})

	t.Run("negative means unlimited", func(t *testing.T) {
		pool := NewWorkerPool(ctx, -3, false)
		if pool.maxWorkers != 0 {
			t.Errorf("expected maxWorkers=0, got %d", pool.maxWorkers)
		}
	})
}

func TestWorkerPool_SubmitAndWait(t *testing.T) {
	ctx := context.Background()

	t.Run("results sorted by task id", func(t *testing.T) {
		pool := NewWorkerPool(ctx, 2, false)
		for _, id := range []int64{9, 3, 5} {
			pool.Submit(id, func(context.Context) error { return nil })
		}

		results, errs := pool.Wait()
		if len(errs) != 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		for i, want := range []int64{3, 5, 9} {
			if results[i].TaskID != want {
				t.Errorf("results[%d]: got %d, want %d", i, results[i].TaskID, want)
			}
		}
	})

	t.Run("errors are collected and labelled", func(t *testing.T) {
		pool := NewWorkerPool(ctx, 0, false)
		boom := errors.New("boom")
		pool.Submit(1, func(context.Context) error { return nil })
		pool.Submit(2, func(context.Context) error { return boom })

		results, errs := pool.Wait()
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if len(errs) != 1 || !errors.Is(errs[0], boom) || errs[0].Error() != "task #2: boom" {
			t.Errorf("errs: %v", errs)
		}
		if results[1].Err != boom {
			t.Errorf("result error: %v", results[1].Err)
		}
	})
}

func TestWorkerPool_BoundedConcurrency(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, false)

	var current, peak atomic.Int32
	for id := int64(1); id <= 6; id++ {
		pool.Submit(id, func(context.Context) error {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return nil
		})
	}

	results, _ := pool.Wait()
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d exceeds 2", peak.Load())
	}
}

func TestWorkerPool_FailFast(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, true)

	pool.Submit(1, func(context.Context) error { return errors.New("first fails") })
	// Let the failure land before queueing more work.
	time.Sleep(50 * time.Millisecond)

	var ran atomic.Bool
	pool.Submit(2, func(context.Context) error {
		ran.Store(true)
		return nil
	})

	results, errs := pool.Wait()
	if ran.Load() {
		t.Error("operation ran after fail-fast cancellation")
	}
	if len(results) != 1 || len(errs) != 1 {
		t.Errorf("results %d errs %d", len(results), len(errs))
	}
}

func TestWorkerPool_Cancel(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, false)
	pool.Cancel()

	pool.Submit(1, func(context.Context) error { return nil })
	results, errs := pool.Wait()
	if len(results) != 0 || len(errs) != 0 {
		t.Errorf("cancelled pool ran work: %v %v", results, errs)
	}
}
