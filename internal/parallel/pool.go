// Package parallel runs pixel kernels over row bands on a fixed set of
// worker goroutines.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a work-stealing pool of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue
// is empty, which keeps bands of uneven cost balanced.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case job := <-own:
			job()
			continue
		default:
		}

		if job := p.steal(id); job != nil {
			job()
			continue
		}
		select {
		case <-p.done:
			drain(own)
			return
		case job := <-own:
			job()
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case job := <-q:
			job()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job
		default:
		}
	}
	return nil
}

// Rows splits [0, height) into bands of at least minBand rows, runs fn on
// each band and waits for all of them. Small images and closed pools run
// fn inline on the calling goroutine.
func (p *Pool) Rows(height, minBand int, fn func(y0, y1 int)) {
	if height <= 0 {
		return
	}
	minBand = max(minBand, 1)
	bands := min(p.workers*2, (height+minBand-1)/minBand)
	if bands <= 1 || !p.running.Load() {
		fn(0, height)
		return
	}

	step := (height + bands - 1) / bands
	var wg sync.WaitGroup
	for i, y0 := 0, 0; y0 < height; i, y0 = i+1, y0+step {
		y1 := min(y0+step, height)
		wg.Add(1)
		job := func() {
			defer wg.Done()
			fn(y0, y1)
		}
		select {
		case p.queues[i%p.workers] <- job:
		case <-p.done:
			job()
		}
	}
	wg.Wait()
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Close stops the workers after queued bands finish. Safe to call more
// than once.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}
