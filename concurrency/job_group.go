package concurrency

import "sync"

// JobGroup waits for a set of dispatched jobs and keeps the first error
// returned by any of them.
type JobGroup struct {
	ch   JobsData
	wg   sync.WaitGroup
	err  error
	lock sync.Mutex
}

func (g *JobGroup) Dispatch(fn func() error) {
	g.wg.Add(1)

	g.ch <- func() {
		defer g.wg.Done()

		err := fn()
		if err != nil {
			g.lock.Lock()
			if g.err == nil {
				g.err = err
			}
			g.lock.Unlock()
		}
	}
}

// Failed reports whether any job of the group has already failed.
func (g *JobGroup) Failed() bool {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.err != nil
}

func (g *JobGroup) Finish() error {
	g.wg.Wait()

	g.lock.Lock()
	defer g.lock.Unlock()
	return g.err
}
