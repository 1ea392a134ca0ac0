package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"lecture-gen/dto"
)

var (
	ErrPoolClosed = errors.New("worker pool is shut down")
	ErrQueueFull  = errors.New("worker queue is full")
)

type Handler func(ctx context.Context, message dto.LectureJobMessage) error

type task struct {
	message dto.LectureJobMessage
	ctx     context.Context
	cancel  context.CancelFunc
}

type run struct {
	runId  uuid.UUID
	cancel context.CancelFunc
}

// Pool runs lecture jobs in process. At most one run per user is live: a
// newer Enqueue for the same user cancels the older run's context.
type Pool struct {
	queue   chan task
	handler Handler
	abandon Handler
	workers int
	wg      sync.WaitGroup

	mu      sync.Mutex
	baseCtx context.Context
	running map[string]run
	closed  bool
}

func NewPool(workerCount int, queueSize int, handler Handler) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 100
	}
	return &Pool{
		queue:   make(chan task, queueSize),
		handler: handler,
		workers: workerCount,
		baseCtx: context.Background(),
		running: make(map[string]run),
	}
}

// OnAbandon registers h to be called for runs that are dropped from the queue
// without being handled. It must be set before Start.
func (p *Pool) OnAbandon(h Handler) {
	p.abandon = h
}

// Start launches the workers. Runs derive their context from ctx, so
// cancelling it stops every in-flight run.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	p.baseCtx = ctx
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) Enqueue(ctx context.Context, message dto.LectureJobMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	runCtx, cancel := context.WithCancel(p.baseCtx)
	t := task{message: message, ctx: runCtx, cancel: cancel}

	select {
	case p.queue <- t:
	default:
		cancel()
		return ErrQueueFull
	}

	if prev, ok := p.running[message.UserId]; ok {
		zerolog.Ctx(ctx).Info().
			Str("user_id", message.UserId).
			Str("superseded_run_id", prev.runId.String()).
			Msg("cancelling superseded run")
		prev.cancel()
	}
	p.running[message.UserId] = run{runId: message.RunId, cancel: cancel}

	return nil
}

func (p *Pool) worker(ctx context.Context, workerId int) {
	defer p.wg.Done()

	zerolog.Ctx(ctx).Debug().Int("worker_id", workerId).Msg("worker started")

	for t := range p.queue {
		if t.ctx.Err() != nil {
			zerolog.Ctx(ctx).Info().
				Str("user_id", t.message.UserId).
				Str("run_id", t.message.RunId.String()).
				Msg("skipping cancelled run")
			p.drop(ctx, t)
			p.finish(t)
			continue
		}

		if err := p.handler(t.ctx, t.message); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Int("worker_id", workerId).
				Str("user_id", t.message.UserId).
				Str("run_id", t.message.RunId.String()).
				Msg("lecture job failed")
		}
		p.finish(t)
	}
}

// drop hands a skipped run to the abandon hook. The hook gets a live context
// because the run's own context is already cancelled.
func (p *Pool) drop(ctx context.Context, t task) {
	if p.abandon == nil {
		return
	}
	if err := p.abandon(context.WithoutCancel(t.ctx), t.message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("user_id", t.message.UserId).
			Str("run_id", t.message.RunId.String()).
			Msg("failed to release skipped run")
	}
}

func (p *Pool) finish(t task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.running[t.message.UserId]; ok && cur.runId == t.message.RunId {
		delete(p.running, t.message.UserId)
	}
	t.cancel()
}

// Shutdown stops accepting work and waits for queued runs to drain.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}
