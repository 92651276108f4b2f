package qpath

import (
	"fmt"
	"time"
)

// Worker processes jobs
type Worker struct {
	pool *Q
	jobs chan Job
}

func (w *Worker) run() {
	for {
		select {
		case <-w.pool.ctx.Done():
			return
		case w.pool.workers <- w.jobs:
			select {
			case job := <-w.jobs:
				result, err := w.processJob(job)
				w.pool.space.Store(job.ID, result, err)
			case <-w.pool.ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) processJob(job Job) (result any, err error) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
		w.pool.metrics.recordJobExecution(job.StartTime, started, err == nil)
		if err != nil {
			Logger().Warn("job failed", "id", job.ID, "err", err)
		}
	}()

	return job.Fn()
}
