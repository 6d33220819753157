// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package asynctiff

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrPoolClosed is returned when work is submitted to a closed WorkerPool.
var ErrPoolClosed = errors.New("asynctiff: worker pool is closed")

// WorkerPool runs CPU bound decompression on a fixed number of goroutines.
// It is safe for concurrent use.
type WorkerPool struct {
	size  int
	tasks chan poolTask
	quit  chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

type poolTask struct {
	run func()
}

// NewWorkerPool starts a pool with the given number of workers.
// A value below 1 means runtime.GOMAXPROCS(0).
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &WorkerPool{
		size:  workers,
		tasks: make(chan poolTask, workers*2),
		quit:  make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-p.quit:
					return
				case task := <-p.tasks:
					task.run()
				}
			}
		}()
	}
	return p
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int {
	return p.size
}

// Close stops the workers. Queued tasks not yet started are abandoned and
// their callers see ErrPoolClosed or their context error.
func (p *WorkerPool) Close() error {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	p.wg.Wait()
	return nil
}

type poolResult[T any] struct {
	v   T
	err error
}

func poolError(err error) error {
	return &DecodeError{Msg: "worker pool", Err: err}
}

// runOnPool runs fn on one of the pool's workers and waits for the result.
// A panic in fn, a closed pool and a canceled context are returned as a
// *DecodeError.
func runOnPool[T any](ctx context.Context, p *WorkerPool, fn func() (T, error)) (T, error) {
	var zero T

	// Buffered so a worker never blocks on a caller that has gone away.
	done := make(chan poolResult[T], 1)

	task := poolTask{
		run: func() {
			if err := ctx.Err(); err != nil {
				done <- poolResult[T]{err: poolError(err)}
				return
			}
			defer func() {
				if r := recover(); r != nil {
					done <- poolResult[T]{err: &DecodeError{Msg: "panic in worker", Err: fmt.Errorf("%v", r)}}
				}
			}()
			v, err := fn()
			done <- poolResult[T]{v: v, err: err}
		},
	}

	select {
	case <-ctx.Done():
		return zero, poolError(ctx.Err())
	case <-p.quit:
		return zero, poolError(ErrPoolClosed)
	case p.tasks <- task:
	}

	select {
	case <-ctx.Done():
		return zero, poolError(ctx.Err())
	case <-p.quit:
		// The task may still have completed.
		select {
		case res := <-done:
			return res.v, res.err
		default:
			return zero, poolError(ErrPoolClosed)
		}
	case res := <-done:
		return res.v, res.err
	}
}
