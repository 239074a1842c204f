package http

import (
	"sync"
)

// Pool is the fixed-size worker pool rustlets run on. Connections parse on
// their own goroutines, but dispatch always goes through here, which caps
// handler concurrency at the configured pool size.
type Pool struct {
	jobs chan func()
	wg   sync.WaitGroup
	once sync.Once
}

func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		jobs: make(chan func()),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		job()
	}
}

// Submit blocks until a worker picks the job up. Backpressure on saturated
// pools is intentional: connections wait instead of spawning work unboundedly.
func (p *Pool) Submit(job func()) {
	p.jobs <- job
}

// Stop closes the pool after all the submitted jobs have finished. Submitting
// after Stop panics.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
