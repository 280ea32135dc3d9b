package server

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sadraskol/mia/vm"
)

// runRequest is one program run waiting for a worker.
type runRequest struct {
	chunk *vm.Chunk
	opts  []vm.Option
	done  chan runResult
}

type runResult struct {
	value vm.Value
	err   error
}

// RunPool bounds how many programs execute at once. Every run gets a fresh
// VM, so workers share nothing but the request queue.
type RunPool struct {
	requests chan runRequest
	quit     chan struct{}
}

// NewRunPool starts size workers, runtime.NumCPU() when size is not positive.
func NewRunPool(size int) *RunPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &RunPool{
		requests: make(chan runRequest, 64),
		quit:     make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		go p.loop()
	}
	return p
}

func (p *RunPool) loop() {
	for {
		select {
		case req := <-p.requests:
			req.done <- p.execute(req.chunk, req.opts)
		case <-p.quit:
			return
		}
	}
}

// execute runs chunk on a new VM, recovering from panics.
func (p *RunPool) execute(chunk *vm.Chunk, opts []vm.Option) (result runResult) {
	defer func() {
		if r := recover(); r != nil {
			result = runResult{err: fmt.Errorf("vm panic: %v", r)}
		}
	}()
	value, err := vm.NewVM(opts...).Run(chunk)
	return runResult{value: value, err: err}
}

// Do runs chunk on a worker and blocks until it completes or ctx is done.
// The run itself also watches ctx, so an abandoned request frees its worker.
func (p *RunPool) Do(ctx context.Context, chunk *vm.Chunk, opts ...vm.Option) (vm.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-p.quit:
		return nil, errPoolStopped
	default:
	}

	req := runRequest{
		chunk: chunk,
		opts:  append(opts, vm.WithContext(ctx)),
		done:  make(chan runResult, 1),
	}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, errPoolStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, errPoolStopped
	}
}

// Stop shuts down the workers. Runs already queued are abandoned.
func (p *RunPool) Stop() {
	close(p.quit)
}
