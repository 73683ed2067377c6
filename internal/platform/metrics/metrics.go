package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	computations      uint64
	failedComputes    uint64
	droppedRecords    uint64
	computeDurationUs uint64
	recomputeRuns     uint64
	recomputeFailures uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordScore counts one subject computation.
func (c *Collector) RecordScore(duration time.Duration, failed bool, dropped int) {
	atomic.AddUint64(&c.computations, 1)
	if failed {
		atomic.AddUint64(&c.failedComputes, 1)
	}
	if dropped > 0 {
		atomic.AddUint64(&c.droppedRecords, uint64(dropped))
	}
	atomic.AddUint64(&c.computeDurationUs, uint64(duration.Microseconds()))
}

func (c *Collector) RecordRecompute(failed bool) {
	atomic.AddUint64(&c.recomputeRuns, 1)
	if failed {
		atomic.AddUint64(&c.recomputeFailures, 1)
	}
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	computations := atomic.LoadUint64(&c.computations)
	computeUs := atomic.LoadUint64(&c.computeDurationUs)
	avgCompute := float64(0)
	if computations > 0 {
		avgCompute = float64(computeUs) / float64(computations)
	}
	return map[string]any{
		"requestsTotal":           total,
		"errorsTotal":             errs,
		"rateLimitedTotal":        limited,
		"avgDurationMs":           avg,
		"totalDurationMs":         totalMs,
		"cpisComputationsTotal":   computations,
		"cpisFailedTotal":         atomic.LoadUint64(&c.failedComputes),
		"cpisDroppedRecordsTotal": atomic.LoadUint64(&c.droppedRecords),
		"cpisAvgComputeUs":        avgCompute,
		"cpisRecomputeRunsTotal":  atomic.LoadUint64(&c.recomputeRuns),
		"cpisRecomputeFailures":   atomic.LoadUint64(&c.recomputeFailures),
	}
}
