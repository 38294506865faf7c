package worker

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler processes one message. It must not return until the message is
// fully handled; the pool commits the offset right after it returns.
type Handler func(ctx context.Context, msg kafka.Message)

// Committer acknowledges handled messages. *kafka.Reader satisfies it.
type Committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

const commitTimeout = 5 * time.Second

// Pool runs a fixed set of workers. Every message of a given partition goes
// to the same worker, so per-partition order is preserved while different
// partitions are handled in parallel.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewPool creates size workers, each with an inbox of queueSize messages.
// The inbox lets the fetch loop run ahead of one slow partition so that the
// other workers keep receiving messages.
func NewPool(size, queueSize int, handle Handler, commit Committer, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = &Worker{
			id:     i,
			in:     make(chan kafka.Message, queueSize),
			handle: handle,
			commit: commit,
			logger: logger.With(zap.Int("worker_id", i)),
		}
	}
	return &Pool{workers: workers, logger: logger}
}

// Start launches all workers. Cancelling ctx stops them from starting new
// messages; the message in hand is always finished and committed.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Submit routes msg to the worker owning its partition. It blocks while that
// worker's inbox is full and returns ctx.Err() if ctx is cancelled first.
func (p *Pool) Submit(ctx context.Context, msg kafka.Message) error {
	w := p.workers[msg.Partition%len(p.workers)]
	select {
	case w.in <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes every inbox and waits for the workers to return.
// Submit must not be called after Stop.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		close(w.in)
	}
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Size reports the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Worker handles the messages of the partitions assigned to it, one at a time.
type Worker struct {
	id     int
	in     chan kafka.Message
	handle Handler
	commit Committer
	logger *zap.Logger
}

// Run drains the inbox until it is closed.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for msg := range w.in {
		// Left uncommitted so the broker redelivers it after restart.
		if ctx.Err() != nil {
			w.logger.Debug("skipping message after shutdown",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
			continue
		}
		w.process(ctx, msg)
	}
	w.logger.Info("worker stopping")
}

func (w *Worker) process(ctx context.Context, msg kafka.Message) {
	w.handle(context.WithoutCancel(ctx), msg)

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := w.commit.CommitMessages(commitCtx, msg); err != nil {
		w.logger.Error("failed to commit offset",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}
