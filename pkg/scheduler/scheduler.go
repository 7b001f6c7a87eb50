// Package scheduler provides a fixed-size worker pool with futures. Blocking
// instrument round trips run here so an explicit stop can always interrupt
// them through the future's context.
package scheduler

import (
	"context"
	"fmt"
	"sync"
)

// Work is a unit of work executed by the pool.
type Work func(ctx context.Context) (any, error)

// Result carries the outcome of one unit of work.
type Result[T any] struct {
	Data T
	Err  error
}

// Future resolves once its work finishes. Stop cancels the work's context.
type Future[T any] struct {
	input    chan T
	resolved bool
	value    T
	cancel   context.CancelFunc
	lock     sync.Mutex
}

func newFuture[T any](input chan T, cancel context.CancelFunc) *Future[T] {
	f := &Future[T]{
		input:  input,
		cancel: cancel,
	}

	go func() {
		v := <-f.input
		f.lock.Lock()
		defer f.lock.Unlock()

		f.value = v
		f.resolved = true
		f.cancel()
	}()

	return f
}

// C returns the channel the result is delivered on.
func (f *Future[T]) C() <-chan T {
	return f.input
}

// Poll returns the value if the future already resolved.
func (f *Future[T]) Poll() (value T, isResolved bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.resolved {
		return f.value, true
	}

	var none T
	return none, false
}

// Stop cancels the work backing this future.
func (f *Future[T]) Stop() {
	f.cancel()
}

type workRequest struct {
	fn  Work
	c   chan Result[any]
	ctx context.Context
}

type fifo[T any] []T

func (q *fifo[T]) len() int { return len(*q) }

func (q *fifo[T]) push(t T) { *q = append(*q, t) }

func (q *fifo[T]) pop() T {
	old := *q
	x := old[0]
	*q = old[1:]
	return x
}

// Scheduler dispatches queued work to a fixed number of workers in FIFO
// order. Close cancels the work contexts and waits for in-flight work.
type Scheduler struct {
	mu     sync.Mutex
	closed bool

	work     chan workRequest
	quit     chan struct{}
	loopDone chan struct{}
	slots    chan struct{}
	freed    chan struct{}

	pending fifo[workRequest]
	wg      sync.WaitGroup

	mainCtx    context.Context
	mainCancel context.CancelFunc
}

func NewScheduler(nbWorkers int) *Scheduler {
	if nbWorkers <= 0 {
		nbWorkers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		work:       make(chan workRequest),
		quit:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		slots:      make(chan struct{}, nbWorkers),
		freed:      make(chan struct{}, 1),
		mainCtx:    ctx,
		mainCancel: cancel,
	}
	go s.run()
	return s
}

// AddWork queues a unit of work and returns its future. Work added after
// Close resolves immediately with context.Canceled.
func (s *Scheduler) AddWork(w Work) *Future[Result[any]] {
	c := make(chan Result[any], 1)
	ctx, cancel := context.WithCancel(s.mainCtx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		c <- Result[any]{Err: context.Canceled}
		return newFuture(c, func() {})
	}
	// the run loop keeps receiving until closed flips under this mutex,
	// so the send cannot be orphaned
	s.work <- workRequest{fn: w, c: c, ctx: ctx}
	s.mu.Unlock()

	return newFuture(c, cancel)
}

// Close cancels all work contexts and waits for in-flight workers.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.mainCancel()
	close(s.quit)
	<-s.loopDone
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer close(s.loopDone)
	for {
		select {
		case req := <-s.work:
			s.pending.push(req)
			s.dispatch()
		case <-s.freed:
			s.dispatch()
		case <-s.quit:
			for s.pending.len() > 0 {
				req := s.pending.pop()
				req.c <- Result[any]{Err: context.Canceled}
			}
			return
		}
	}
}

func (s *Scheduler) dispatch() {
	for s.pending.len() > 0 {
		select {
		case s.slots <- struct{}{}:
			req := s.pending.pop()
			s.wg.Add(1)
			go s.execute(req)
		default:
			return
		}
	}
}

func (s *Scheduler) execute(req workRequest) {
	defer s.wg.Done()
	defer func() {
		<-s.slots
		select {
		case s.freed <- struct{}{}:
		default:
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			req.c <- Result[any]{Err: fmt.Errorf("worker panicked: %v", r)}
		}
	}()

	v, err := req.fn(req.ctx)
	req.c <- Result[any]{Data: v, Err: err}
}
