package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/illarion/haredb/internal/persist"
	"github.com/illarion/haredb/internal/storage"
)

// DefaultShutdownTimeout bounds how long Close waits for pending writes.
const DefaultShutdownTimeout = 10 * time.Second

// Dispatcher is the engine's view of a persistence worker.
type Dispatcher interface {
	Dispatch(persist.Instruction)
	Wait(ctx context.Context) error
}

type options struct {
	logger          *zap.Logger
	worker          Dispatcher
	driver          storage.Driver
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
}

// Option configures New.
type Option func(*options)

// WithLogger sets the engine logger. Keys and values are never logged.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithWorker injects the persistence worker. The engine takes ownership and
// shuts it down on Close or on a failed New.
func WithWorker(w Dispatcher) Option {
	return func(o *options) {
		o.worker = w
	}
}

// WithDriver selects the storage driver (bolt by default).
func WithDriver(d storage.Driver) Option {
	return func(o *options) {
		o.driver = d
	}
}

// WithLockTimeout bounds how long New waits for the store file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

// WithShutdownTimeout bounds how long Close waits for the worker to drain.
// Zero means Close does not wait at all.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		o.shutdownTimeout = d
	}
}
