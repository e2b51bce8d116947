package hindsight

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type (
	// Archiver drains channel history into a BoltArchive in the
	// background. Channels are enqueued by name; a small worker pool
	// performs the drains so that archiving many channels doesn't
	// serialize behind one slow one. Each drain is an independent query,
	// so workers share nothing but the archive file
	Archiver struct {
		archive *BoltArchive
		client  *Client
		log     *zap.Logger
		queue   chan string
		ctx     context.Context
		cancel  context.CancelFunc
		config  ArchiverConfig
		wg      sync.WaitGroup
	}

	ArchiverConfig struct {
		Logger       *zap.Logger
		WorkerCount  int
		MaxQueueSize int
		DrainTimeout time.Duration
	}
)

const (
	DefaultArchiveWorkers      = 4
	DefaultArchiveQueueSize    = 256
	DefaultArchiveDrainTimeout = 2 * time.Minute
)

func DefaultArchiverConfig() ArchiverConfig {
	return ArchiverConfig{
		WorkerCount:  DefaultArchiveWorkers,
		MaxQueueSize: DefaultArchiveQueueSize,
		DrainTimeout: DefaultArchiveDrainTimeout,
	}
}

// NewArchiver starts the worker pool. Call Stop to shut it down
func NewArchiver(
	archive *BoltArchive, client *Client, cfg ArchiverConfig,
) *Archiver {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultArchiveWorkers
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultArchiveQueueSize
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultArchiveDrainTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Archiver{
		archive: archive,
		client:  client,
		log:     cfg.Logger,
		queue:   make(chan string, cfg.MaxQueueSize),
		ctx:     ctx,
		cancel:  cancel,
		config:  cfg,
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		a.wg.Add(1)
		go a.worker(i)
	}
	return a
}

// Enqueue schedules a channel for archiving. It never blocks; when the
// queue is full or the pool has been stopped the request is dropped and
// reported
func (a *Archiver) Enqueue(channel string) bool {
	if a.ctx.Err() != nil {
		a.log.Warn("archiver stopped, dropping request",
			zap.String("channel", channel),
		)
		return false
	}
	select {
	case a.queue <- channel:
		return true
	default:
		a.log.Warn("archive queue full, dropping request",
			zap.String("channel", channel),
			zap.Int("queue_size", len(a.queue)),
		)
		return false
	}
}

// Stop shuts the pool down and waits for in-flight drains to finish.
// Channels still queued are dropped. The queue is left open so a late
// Enqueue degrades to a dropped request instead of a panic
func (a *Archiver) Stop() {
	a.cancel()
	a.wg.Wait()
}

func (a *Archiver) worker(id int) {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case channel := <-a.queue:
			a.drain(id, channel)
		}
	}
}

func (a *Archiver) drain(workerID int, channel string) {
	ctx, cancel := context.WithTimeout(a.ctx, a.config.DrainTimeout)
	defer cancel()

	start := time.Now()
	count, err := a.archive.Drain(ctx, a.client, channel)
	duration := time.Since(start)

	if err != nil {
		a.log.Error("Failed to archive channel",
			zap.Int("worker_id", workerID),
			zap.String("channel", channel),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	a.log.Debug("Channel archived",
		zap.Int("worker_id", workerID),
		zap.String("channel", channel),
		zap.Int("events", count),
		zap.Duration("duration", duration),
	)
}
