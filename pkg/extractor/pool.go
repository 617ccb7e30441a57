package extractor

import (
	"context"
	"fmt"
	"runtime"

	"github.com/panjf2000/ants/v2"
)

// Pool runs CPU-bound parsing off the request goroutine.
type Pool struct {
	pool *ants.Pool
}

func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Pool{pool: p}, nil
}

// Do runs fn on the pool and waits for it. A ctx that is already done
// never reaches the pool. If ctx ends while fn runs, Do returns ctx.Err()
// and fn keeps running to completion on its worker.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan struct{})
	if err := p.pool.Submit(func() {
		defer close(done)
		fn()
	}); err != nil {
		return fmt.Errorf("failed to submit task: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) Running() int {
	return p.pool.Running()
}

func (p *Pool) Release() {
	p.pool.Release()
}
