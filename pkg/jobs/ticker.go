package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Periodic enqueues a job of the given type onto a queue at a fixed
// interval. Used for recurring maintenance work such as the chapter
// deadline sweep. One job is enqueued immediately on start.
type Periodic struct {
	queue    *Queue
	jobType  string
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewPeriodic builds a periodic enqueuer for the queue.
func NewPeriodic(queue *Queue, jobType string, interval time.Duration, logger *zap.Logger) *Periodic {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Periodic{queue: queue, jobType: jobType, interval: interval, logger: logger}
}

// Start launches the ticker goroutine.
func (p *Periodic) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.fire()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.fire()
			}
		}
	}()
}

// Stop halts the ticker and waits for the goroutine to exit.
func (p *Periodic) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Periodic) fire() {
	job := Job{
		ID:   fmt.Sprintf("%s-%d", p.jobType, time.Now().UnixNano()),
		Type: p.jobType,
	}
	if err := p.queue.Enqueue(job); err != nil {
		p.logger.Sugar().Warnw("periodic enqueue failed", "type", p.jobType, "error", err)
	}
}
