// Package worker provides the per-chat job loops used by the channel
// runtime. Each chat gets its own job channel so messages from one chat
// are handled in order; a shared semaphore caps concurrency across chats.
package worker

import "context"

// Pool bounds how many jobs run at once across all loops spawned from it.
type Pool[J any] struct {
	ctx context.Context
	sem chan struct{}
}

func NewPool[J any](ctx context.Context, maxConcurrency int) *Pool[J] {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Pool[J]{
		ctx: ctx,
		sem: make(chan struct{}, maxConcurrency),
	}
}

// Spawn starts a loop that drains jobs through handle until the pool's
// context ends or jobs is closed. Jobs on one channel run sequentially.
func (p *Pool[J]) Spawn(jobs <-chan J, handle func(context.Context, J)) {
	go func() {
		for {
			select {
			case <-p.ctx.Done():
				return
			case job, ok := <-jobs:
				if !ok {
					return
				}
				select {
				case p.sem <- struct{}{}:
				case <-p.ctx.Done():
					return
				}
				func() {
					defer func() { <-p.sem }()
					handle(p.ctx, job)
				}()
			}
		}
	}()
}

// Enqueue blocks until the job is accepted or either context ends.
func (p *Pool[J]) Enqueue(ctx context.Context, jobs chan<- J, job J) error {
	if ctx == nil {
		ctx = p.ctx
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	case jobs <- job:
		return nil
	}
}
