package qpath

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/theapemachine/errnie"
)

/*
Q is a fixed-size worker pool. Jobs are independent numerical runs; each job
owns its buffers and random stream, and results are collected through the
result space once the job returns.
*/
type Q struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	workers    chan chan Job
	jobs       chan Job
	space      *ResultSpace
	metrics    *Metrics
	workerMu   sync.Mutex
	workerList []*Worker
	config     *Config
	closeOnce  sync.Once

	// mu orders Schedule against Close so nothing is queued after the final drain.
	mu     sync.RWMutex
	closed bool
}

// NewQ starts config.Workers workers. A nil config uses NewConfig.
func NewQ(ctx context.Context, config *Config) *Q {
	if config == nil {
		config = NewConfig()
	}

	workers := config.Workers
	if workers < 1 {
		workers = 1
	}
	queue := config.QueueSize
	if queue < workers {
		queue = workers * 10
	}

	ctx, cancel := context.WithCancel(ctx)
	q := &Q{
		ctx:        ctx,
		cancel:     cancel,
		workerList: make([]*Worker, 0, workers),
		jobs:       make(chan Job, queue),
		workers:    make(chan chan Job, workers),
		space:      newResultSpace(),
		metrics:    newMetrics(),
		config:     config,
	}

	errnie.Info("NewQ - workers %d, queue %d", workers, queue)

	for i := 0; i < workers; i++ {
		q.startWorker()
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.manage()
	}()

	return q
}

// Pool management
func (q *Q) manage() {
	defer q.drain()

	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			select {
			case <-q.ctx.Done():
				q.space.Store(job.ID, nil, q.closedError())
				return
			case workerChan := <-q.workers:
				select {
				case workerChan <- job:
				case <-q.ctx.Done():
					q.space.Store(job.ID, nil, q.closedError())
					return
				}
			}
		}
	}
}

// drain fails every job still sitting in the queue.
func (q *Q) drain() {
	for {
		select {
		case job := <-q.jobs:
			q.space.Store(job.ID, nil, q.closedError())
		default:
			return
		}
	}
}

func (q *Q) closedError() error {
	return fmt.Errorf("%w: %v", ErrPoolClosed, q.ctx.Err())
}

/*
Schedule queues fn under id and returns a channel that receives its result.
If the queue stays full past the scheduling timeout the channel carries the
scheduling error instead. On a closed pool the channel carries ErrPoolClosed.
*/
func (q *Q) Schedule(id string, fn func() (any, error)) chan Value {
	ch := q.space.Await(id)

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || q.ctx.Err() != nil {
		q.space.Store(id, nil, q.closedError())
		return ch
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.getSchedulingTimeout())
	defer cancel()

	job := Job{
		ID:        id,
		Fn:        fn,
		StartTime: time.Now(),
	}

	select {
	case q.jobs <- job:
		q.metrics.mu.Lock()
		q.metrics.JobQueueSize = len(q.jobs)
		q.metrics.mu.Unlock()
		return ch
	case <-ctx.Done():
		if q.ctx.Err() != nil {
			q.space.Store(id, nil, q.closedError())
			return ch
		}

		q.metrics.mu.Lock()
		q.metrics.SchedulingFailures++
		q.metrics.mu.Unlock()

		q.space.Store(id, nil, fmt.Errorf("job scheduling timeout: %w", ctx.Err()))
		return ch
	}
}

// Done is closed once the pool shuts down.
func (q *Q) Done() <-chan struct{} {
	return q.ctx.Done()
}

// Metrics returns a snapshot of the pool counters.
func (q *Q) Metrics() map[string]interface{} {
	return q.metrics.ExportMetrics()
}

func (q *Q) startWorker() {
	worker := &Worker{
		pool: q,
		jobs: make(chan Job),
	}
	q.workerMu.Lock()
	q.workerList = append(q.workerList, worker)
	q.workerMu.Unlock()

	q.metrics.mu.Lock()
	q.metrics.WorkerCount++
	q.metrics.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		worker.run()
	}()
}

func (q *Q) getSchedulingTimeout() time.Duration {
	if q.config != nil && q.config.SchedulingTimeout > 0 {
		return q.config.SchedulingTimeout
	}
	return 5 * time.Second
}

// Close stops the workers and waits for them to exit. It is safe to call twice.
func (q *Q) Close() {
	if q == nil {
		return
	}

	q.closeOnce.Do(func() {
		Logger().Debug("closing pool")
		q.cancel()

		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		q.wg.Wait()
		q.drain()

		q.workerMu.Lock()
		q.workerList = nil
		q.workerMu.Unlock()

		Logger().Debug("pool closed", "jobs", q.metrics.snapshotJobs())
	})
}
