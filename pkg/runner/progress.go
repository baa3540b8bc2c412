package runner

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/openrepurpose/netprox/pkg/logger"
)

// progress counts finished chunks and periodically logs how far along the
// run is. Counting is lock-free so workers never serialize on it.
type progress struct {
	total int64
	done  atomic.Int64

	started  time.Time
	lastLog  atomic.Int64
	interval time.Duration
}

func newProgress(total int) *progress {
	return &progress{
		total:    int64(total),
		started:  time.Now(),
		interval: 10 * time.Second,
	}
}

// Mark records one finished chunk and logs at most once per interval.
func (p *progress) Mark(runID string) {
	done := p.done.Add(1)
	if done == p.total {
		p.log(runID, done)
		return
	}

	now := time.Now().UnixNano()
	last := p.lastLog.Load()
	if now-last < p.interval.Nanoseconds() {
		return
	}
	if p.lastLog.CompareAndSwap(last, now) {
		p.log(runID, done)
	}
}

func (p *progress) log(runID string, done int64) {
	logger.Info("Run progress",
		"run_id", runID,
		"chunks", fmt.Sprintf("%d/%d", done, p.total),
		"percentage", p.Percentage(done),
		"elapsed", time.Since(p.started).Round(time.Second).String(),
	)
}

func (p *progress) Percentage(done int64) int32 {
	if p.total <= 0 {
		return 0
	}
	return int32(done * 100 / p.total)
}
