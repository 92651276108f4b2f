package qpath

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

type Metrics struct {
	mu                 sync.RWMutex
	WorkerCount        int
	JobQueueSize       int
	JobCount           int64
	FailureCount       int64
	SchedulingFailures int64
	TotalJobTime       time.Duration
	TotalQueueTime     time.Duration

	AverageJobLatency time.Duration
	P95JobLatency     time.Duration
	JobSuccessRate    float64

	latencies  []float64
	windowSize int
}

func newMetrics() *Metrics {
	return &Metrics{
		latencies:  make([]float64, 0, 1000), // Store last 1000 measurements
		windowSize: 1000,
	}
}

func (m *Metrics) recordJobExecution(queued, started time.Time, success bool) {
	duration := time.Since(started)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalJobTime += duration
	m.TotalQueueTime += started.Sub(queued)
	m.JobCount++
	if !success {
		m.FailureCount++
	}
	m.JobSuccessRate = float64(m.JobCount-m.FailureCount) / float64(m.JobCount)

	m.updateLatencyPercentiles(duration)
}

func (m *Metrics) updateLatencyPercentiles(duration time.Duration) {
	m.AverageJobLatency = m.TotalJobTime / time.Duration(m.JobCount)

	m.latencies = append(m.latencies, float64(duration))
	if len(m.latencies) > m.windowSize {
		m.latencies = m.latencies[1:]
	}

	sorted := append([]float64(nil), m.latencies...)
	sort.Float64s(sorted)
	m.P95JobLatency = time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
}

func (m *Metrics) snapshotJobs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.JobCount
}

func (m *Metrics) ExportMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"worker_count":        m.WorkerCount,
		"queue_size":          m.JobQueueSize,
		"job_count":           m.JobCount,
		"failure_count":       m.FailureCount,
		"scheduling_failures": m.SchedulingFailures,
		"success_rate":        m.JobSuccessRate,
		"avg_latency":         m.AverageJobLatency.Milliseconds(),
		"p95_latency":         m.P95JobLatency.Milliseconds(),
	}
}
