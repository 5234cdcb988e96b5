package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Pool runs indexed jobs with bounded concurrency. Jobs write their outcome
// into a slot owned by their index, so callers reduce results after Run
// returns without any locking of their own.
type Pool struct {
	Size   int
	Logger logrus.FieldLogger
}

func NewPool(size int, logger logrus.FieldLogger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{Size: size, Logger: logger}
}

// Run calls job(ctx, i) for every i in [0, n) and waits for all of them. With
// Size 1 jobs run in index order on the calling goroutine. A panicking job is
// logged and leaves its slot untouched.
//
// Jobs already started always finish; once ctx is done no new job starts and
// Run returns ctx.Err().
func (p *Pool) Run(ctx context.Context, n int, job func(ctx context.Context, i int)) error {
	if p.Size <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.safeRun(ctx, i, job)
		}
		return nil
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := p.Size
	if workers > n {
		workers = n
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p.safeRun(ctx, i, job)
			}
		}()
	}

	var err error
feed:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return err
}

func (p *Pool) safeRun(ctx context.Context, i int, job func(ctx context.Context, i int)) {
	defer func() {
		if r := recover(); r != nil && p.Logger != nil {
			p.Logger.WithFields(logrus.Fields{
				"job":   i,
				"panic": fmt.Sprint(r),
			}).Error("worker job panicked")
		}
	}()
	job(ctx, i)
}
