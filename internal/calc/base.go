package calc

import (
	"math"
	"runtime"
	"sync"
)

// Epsilon is the smallest standard deviation treated as non-zero variance
const Epsilon = 1e-10

// Pool splits row or column jobs over a fixed number of workers
type Pool struct {
	workers int
}

// NewPool returns a Pool; workers < 1 means one worker per CPU.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	return &Pool{workers: workers}
}

// Workers returns the number of workers
func (p *Pool) Workers() int {
	return p.workers
}

// dispatch feeds job indices 0..jobs-1 to p.workers copies of worker
func (p *Pool) dispatch(jobs int, worker func(order <-chan int, wg *sync.WaitGroup)) {
	order := make(chan int, p.workers)
	var wg sync.WaitGroup

	wg.Add(jobs)

	for i := 0; i < p.workers; i++ {
		go worker(order, &wg)
	}

	for i := 0; i < jobs; i++ {
		order <- i
	}

	wg.Wait()
	close(order)
	return
}

// Statistic holds mean and population standard deviation of one series
type Statistic struct {
	Avg float64
	Std float64
}

// Degenerate reports a series that cannot be standardized: no variance, or
// a NaN or infinite sample somewhere in it
func (s Statistic) Degenerate() bool {
	return math.IsNaN(s.Std) || math.IsInf(s.Std, 0) || math.IsNaN(s.Avg) || s.Std < Epsilon
}
