package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lifeos/memoryd/internal/pipeline/queue"
	"github.com/lifeos/memoryd/internal/pkg/logger"
)

const (
	defaultPopTimeout      = 500 * time.Millisecond
	defaultMonitorInterval = 15 * time.Second
)

// Stats is a point-in-time snapshot of pool throughput, suitable for the
// periodic monitoring log line.
type Stats struct {
	QueueSize      int64
	ActiveWorkers  int32
	TotalProcessed int64
	TotalFailed    int64
}

// Pool supervises N Worker goroutines pulling off the same queue,
// restarts any goroutine that panics, and logs throughput on a fixed
// cadence.
type Pool struct {
	log    *logger.Logger
	queue  queue.Queue
	newWorker func(id int) *Worker

	concurrency     int
	popTimeout      time.Duration
	monitorInterval time.Duration

	active         int32
	totalProcessed int64
	totalFailed    int64

	wg sync.WaitGroup
}

// Config carries the pool tunables.
type Config struct {
	Concurrency     int
	PopTimeout      time.Duration
	MonitorInterval time.Duration
}

// NewPool builds a pool. newWorker is called each time a goroutine slot
// starts its loop (at startup and again after a recovered panic), not once
// per job, so each worker keeps its own video-understanding client across
// the jobs it processes.
func NewPool(log *logger.Logger, q queue.Queue, newWorker func(id int) *Worker, cfg Config) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = defaultPopTimeout
	}
	if cfg.MonitorInterval < 10*time.Second {
		cfg.MonitorInterval = defaultMonitorInterval
	}
	return &Pool{
		log:             log.With("component", "WorkerPool"),
		queue:           q,
		newWorker:       newWorker,
		concurrency:     cfg.Concurrency,
		popTimeout:      cfg.PopTimeout,
		monitorInterval: cfg.MonitorInterval,
	}
}

// Run starts the configured number of worker goroutines plus the monitor
// loop, and blocks until ctx is cancelled. Each worker goroutine is
// supervised: a panic inside Process is recovered and the goroutine
// restarts rather than shrinking the pool.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("starting worker pool", "concurrency", p.concurrency)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.supervise(ctx, i+1)
	}

	p.wg.Add(1)
	go p.monitor(ctx)

	p.wg.Wait()
}

// supervise relaunches runLoop whenever it returns due to a recovered panic,
// until ctx is cancelled.
func (p *Pool) supervise(ctx context.Context, workerID int) {
	defer p.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		p.runLoopRecovered(ctx, workerID)
	}
}

func (p *Pool) runLoopRecovered(ctx context.Context, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker goroutine panicked, restarting", "worker_id", workerID, "panic", r)
		}
	}()
	p.runLoop(ctx, workerID)
}

func (p *Pool) runLoop(ctx context.Context, workerID int) {
	w := p.newWorker(workerID)
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.queue.Pop(ctx, p.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("queue pop failed", "worker_id", workerID, "error", err)
			continue
		}
		if job == nil {
			continue
		}

		atomic.AddInt32(&p.active, 1)
		err = w.Process(ctx, *job)
		atomic.AddInt32(&p.active, -1)

		if err != nil {
			atomic.AddInt64(&p.totalFailed, 1)
			p.log.Error("job processing failed", "worker_id", workerID, "error", err)
			continue
		}
		atomic.AddInt64(&p.totalProcessed, 1)
	}
}

// monitor logs (queue_size, active_workers, total_processed) on the
// configured cadence, never faster than 10s.
func (p *Pool) monitor(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := p.Stats(ctx)
			p.log.Info("worker pool status",
				"queue_size", stats.QueueSize,
				"active_workers", stats.ActiveWorkers,
				"total_processed", stats.TotalProcessed,
				"total_failed", stats.TotalFailed,
			)
		}
	}
}

func (p *Pool) Stats(ctx context.Context) Stats {
	size, err := p.queue.Size(ctx)
	if err != nil {
		size = -1
	}
	return Stats{
		QueueSize:      size,
		ActiveWorkers:  atomic.LoadInt32(&p.active),
		TotalProcessed: atomic.LoadInt64(&p.totalProcessed),
		TotalFailed:    atomic.LoadInt64(&p.totalFailed),
	}
}
