package worker

import (
	"context"

	"github.com/itstheanurag/pyjudge/internal/events"
	"github.com/itstheanurag/pyjudge/internal/queue"
	"github.com/itstheanurag/pyjudge/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Pool runs a fixed number of workers against one queue, which bounds the
// number of sandboxes alive at once.
type Pool struct {
	workers []*Worker
}

func NewPool(size int, engine Evaluator, st store.Store, pub events.Publisher, manager *queue.Manager, logger *zerolog.Logger) *Pool {
	p := &Pool{workers: make([]*Worker, size)}
	for i := range p.workers {
		p.workers[i] = NewWorker(i+1, engine, st, pub, manager, logger)
	}
	return p
}

// Run blocks until ctx is cancelled or the queue is closed and every
// worker has returned.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			w.Start(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) Size() int {
	return len(p.workers)
}
