// Package pipeline fans extraction jobs out across workers. One job covers
// one window; the extraction of a single window stays sequential.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"segtile/internal/logging"
	"segtile/internal/manifest"
	"segtile/internal/raster"
	"segtile/internal/storage"
)

// Job represents a single windowed extraction request.
type Job struct {
	ID           string
	ManifestPath string
	Manifest     *manifest.Manifest
	Window       raster.Window
	OutputDir    string
}

// Result captures the outcome of a Job.
type Result struct {
	Job   Job
	Error error
	Meta  map[string]any
}

// Processor executes a job and returns a Result.
type Processor interface {
	Process(ctx context.Context, job Job) Result
}

// Pipeline orchestrates job dispatch across workers.
type Pipeline struct {
	processor Processor
	log       *slog.Logger
	jobs      chan Job
	done      <-chan struct{}
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	stopOnce  sync.Once
	store     *storage.Store
	mu        sync.Mutex
	closed    bool
	subs      map[int]chan Result
	nextSubID int
}

// New creates a Pipeline with the given concurrency and processor.
func New(ctx context.Context, concurrency int, logger *slog.Logger, store *storage.Store, processor Processor) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		processor: processor,
		log:       logger,
		jobs:      make(chan Job, concurrency*2),
		done:      ctx.Done(),
		cancel:    cancel,
		store:     store,
		subs:      make(map[int]chan Result),
	}

	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	return p
}

var errStopped = errors.New("pipeline stopped")

// Submit adds a job to the processing queue without waiting. It fails when
// the queue is full or the pipeline has stopped.
func (p *Pipeline) Submit(job Job) error {
	if p.isClosed() {
		return errStopped
	}
	p.recordQueued(job)

	select {
	case p.jobs <- job:
		return nil
	default:
		return errors.New("job queue is full")
	}
}

// SubmitWait adds a job to the processing queue, waiting for a queue slot
// when the queue is full. It returns early when ctx is cancelled or the
// pipeline has stopped.
func (p *Pipeline) SubmitWait(ctx context.Context, job Job) error {
	if p.isClosed() {
		return errStopped
	}
	p.recordQueued(job)

	select {
	case p.jobs <- job:
		return nil
	case <-p.done:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pipeline) recordQueued(job Job) {
	if p.store != nil {
		_ = p.store.RecordJobQueued(storage.JobRecord{
			ID:           job.ID,
			Status:       "queued",
			ManifestPath: job.ManifestPath,
			Window:       job.Window.String(),
		})
	}
}

// Stop rejects further submissions, signals workers to exit, and waits for
// completion. Jobs still queued when Stop is called are abandoned.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.cancel()
		p.wg.Wait()
		p.mu.Lock()
		for id, ch := range p.subs {
			close(ch)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	})
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			start := time.Now()
			logging.LogJobStart(p.log, job.ID, job.ManifestPath, job.Window.String())

			if p.store != nil {
				_ = p.store.RecordJobStart(job.ID)
			}
			res := p.processor.Process(ctx, job)
			duration := time.Since(start)

			if res.Error != nil {
				logging.LogJobError(p.log, job.ID, duration, res.Error)
				if p.store != nil {
					_ = p.store.RecordJobResult(job.ID, "failed", res.Error.Error())
				}
			} else {
				logging.LogJobComplete(p.log, job.ID, duration, res.Meta)
				if p.store != nil {
					_ = p.store.RecordJobResult(job.ID, "completed", "")
				}
			}

			p.broadcast(res)
		}
	}
}

// Subscribe returns a channel for receiving job results and an unsubscribe
// function. Results are dropped for subscribers that fall behind; callers
// that must see every result of a known batch should use SubscribeBuffered
// with the batch size.
func (p *Pipeline) Subscribe() (<-chan Result, func()) {
	return p.SubscribeBuffered(8)
}

// SubscribeBuffered is Subscribe with an explicit channel capacity.
func (p *Pipeline) SubscribeBuffered(capacity int) (<-chan Result, func()) {
	if capacity < 1 {
		capacity = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	ch := make(chan Result, capacity)
	p.subs[id] = ch
	unsub := func() {
		p.mu.Lock()
		if c, ok := p.subs[id]; ok {
			close(c)
			delete(p.subs, id)
		}
		p.mu.Unlock()
	}
	return ch, unsub
}

func (p *Pipeline) broadcast(res Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subs {
		select {
		case ch <- res:
		default:
			p.log.Warn("result channel full", "subscriber", id, "job", res.Job.ID)
		}
	}
}
