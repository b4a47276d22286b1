package concurrency

// JobsData is a queue of jobs consumed by a fixed number of workers.
type JobsData chan func()

func (ch JobsData) Group() *JobGroup {
	return &JobGroup{ch: ch}
}

func (ch JobsData) Run(max int) {
	if max < 1 {
		max = 1
	}

	for max > 0 {
		go func() {
			for job := range ch {
				job()
			}
		}()
		max--
	}
}

func (ch JobsData) Close() {
	close(ch)
}
