package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestPoolRunsEveryIndexOnce(t *testing.T) {
	for _, size := range []int{1, 3, 16} {
		p := NewPool(size, nil)
		slots := make([]int32, 50)
		if err := p.Run(context.Background(), len(slots), func(_ context.Context, i int) {
			atomic.AddInt32(&slots[i], 1)
		}); err != nil {
			t.Fatalf("size %d: Run: %v", size, err)
		}
		for i, n := range slots {
			if n != 1 {
				t.Errorf("size %d: slot %d ran %d times", size, i, n)
			}
		}
	}
}

func TestPoolSequentialKeepsOrder(t *testing.T) {
	p := NewPool(1, nil)
	var order []int
	p.Run(context.Background(), 5, func(_ context.Context, i int) {
		order = append(order, i)
	})
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2, nil)
	var running, peak int32
	p.Run(context.Background(), 10, func(_ context.Context, i int) {
		n := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
	})
	if peak > 2 {
		t.Errorf("peak concurrency %d, want <= 2", peak)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := NewPool(2, logger)
	var done int32
	err := p.Run(context.Background(), 4, func(_ context.Context, i int) {
		if i == 1 {
			panic("boom")
		}
		atomic.AddInt32(&done, 1)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if done != 3 {
		t.Errorf("done = %d, want 3", done)
	}
	if len(hook.Entries) != 1 || hook.LastEntry().Level != logrus.ErrorLevel {
		t.Errorf("expected one error entry, got %d", len(hook.Entries))
	}
}

func TestPoolStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPool(1, nil)
	var ran int32
	if err := p.Run(ctx, 3, func(context.Context, int) { atomic.AddInt32(&ran, 1) }); err == nil {
		t.Fatal("expected context error")
	}
	if ran != 0 {
		t.Errorf("ran %d jobs after cancel", ran)
	}
}
