package persist

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/illarion/haredb/internal/metrics"
	"github.com/illarion/haredb/internal/storage"
)

// Opener opens a durable store. storage.Open is the default.
type Opener func(path string, opts storage.Options) (storage.Store, error)

// Worker owns the durable store handle after startup.
type Worker struct {
	inbox  chan Instruction
	work   chan Instruction
	done   chan struct{}
	logger *zap.Logger
	open   Opener

	mu      sync.Mutex
	stopped bool
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger for store errors
func WithLogger(logger *zap.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithOpener replaces storage.Open
func WithOpener(open Opener) Option {
	return func(w *Worker) {
		w.open = open
	}
}

// NewWorker starts a worker. It does nothing until it receives Startup.
func NewWorker(opts ...Option) *Worker {
	w := &Worker{
		inbox:  make(chan Instruction),
		work:   make(chan Instruction),
		done:   make(chan struct{}),
		logger: zap.NewNop(),
		open:   storage.Open,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("persist")

	go w.pump()
	go w.run()

	return w
}

// Dispatch queues in without waiting for it to be applied. Instructions
// dispatched after Shutdown are dropped.
func (w *Worker) Dispatch(in Instruction) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		metrics.PersistDropped.Inc(1)
		w.logger.Warn("instruction after shutdown dropped", zap.String("kind", in.kind()))
		return
	}
	if _, ok := in.(Shutdown); ok {
		w.stopped = true
	}

	// pump is always ready to receive until it has seen Shutdown.
	w.inbox <- in
}

// Done is closed once Shutdown has been applied.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the worker has stopped or ctx ends.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pump moves instructions from inbox to work through an unbounded queue so
// Dispatch never waits for disk.
func (w *Worker) pump() {
	defer close(w.work)

	var queue []Instruction
	inbox := w.inbox

	for inbox != nil || len(queue) > 0 {
		var out chan<- Instruction
		var next Instruction
		if len(queue) > 0 {
			out = w.work
			next = queue[0]
		}

		select {
		case in := <-inbox:
			queue = append(queue, in)
			if _, ok := in.(Shutdown); ok {
				inbox = nil
			}
		case out <- next:
			queue[0] = nil
			queue = queue[1:]
		}
		metrics.PersistPending.Update(int64(len(queue)))
	}
}

func (w *Worker) run() {
	defer close(w.done)

	var store storage.Store

	for in := range w.work {
		switch in := in.(type) {
		case Startup:
			if store != nil {
				w.logger.Warn("store already open, startup ignored", zap.String("path", in.Path))
				continue
			}
			store = w.startup(in)

		case Set:
			if store == nil {
				w.drop(in)
				continue
			}
			w.apply(in, store.Put(in.Key, in.Value))

		case Delete:
			if store == nil {
				w.drop(in)
				continue
			}
			w.apply(in, store.Delete(in.Key))

		case Shutdown:
			if store != nil {
				if err := store.Close(); err != nil {
					w.logger.Error("failed to close store", zap.Error(err))
				}
			}
			w.logger.Debug("worker stopped")
			return
		}
	}
}

func (w *Worker) startup(in Startup) storage.Store {
	if in.Options.Logger == nil {
		in.Options.Logger = w.logger
	}

	store, err := w.open(in.Path, in.Options)
	if err != nil {
		metrics.PersistFailed.Inc(1)
		w.logger.Error("failed to open store", zap.String("path", in.Path), zap.Error(err))
		return nil
	}

	if err := store.EnsureSchema(); err != nil {
		metrics.PersistFailed.Inc(1)
		w.logger.Error("failed to ensure schema", zap.String("path", in.Path), zap.Error(err))
		store.Close()
		return nil
	}

	w.logger.Debug("store opened", zap.String("path", in.Path), zap.String("driver", string(in.Options.Driver)))
	return store
}

func (w *Worker) apply(in Instruction, err error) {
	if err != nil {
		metrics.PersistFailed.Inc(1)
		w.logger.Error("failed to apply instruction", zap.String("kind", in.kind()), zap.Error(err))
		return
	}
	metrics.PersistApplied.Inc(1)
}

func (w *Worker) drop(in Instruction) {
	metrics.PersistDropped.Inc(1)
	w.logger.Warn("no open store, instruction dropped", zap.String("kind", in.kind()))
}
