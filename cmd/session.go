package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/illarion/haredb/internal/core"
	"github.com/illarion/haredb/internal/crypto"
	"github.com/illarion/haredb/internal/metrics"
)

// errInterrupted is returned when a signal arrived before the engine was
// opened
var errInterrupted = errors.New("interrupted")

type sessionPhase int

const (
	phaseResolving sessionPhase = iota // reading config and secret key
	phaseOpening                       // core.New running
	phaseOpen
	phaseAborted
)

// Session is an open engine with the configuration and logger it was
// opened with. On SIGINT or SIGTERM it closes the engine, releasing the
// secret key, and exits with status 130.
type Session struct {
	Engine *core.Engine
	Config *Config
	Logger *zap.Logger

	mu     sync.Mutex
	phase  sessionPhase
	opened chan struct{}

	once    sync.Once
	closing atomic.Bool
	stop    context.CancelFunc
	exit    func(code int)

	// metrics, if set, receives the metrics registry after Close
	metrics io.Writer
}

func newSession(cfg *Config, stop context.CancelFunc) *Session {
	return &Session{
		Config: cfg,
		opened: make(chan struct{}),
		stop:   stop,
		exit:   os.Exit,
	}
}

// watchSignals returns a session that closes itself on SIGINT or SIGTERM
func watchSignals(cfg *Config) *Session {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	s := newSession(cfg, stop)
	go s.closeOnSignal(ctx)
	return s
}

func (s *Session) closeOnSignal(ctx context.Context) {
	<-ctx.Done()
	if s.closing.Load() {
		return
	}

	s.mu.Lock()
	phase := s.phase
	if phase == phaseResolving {
		s.phase = phaseAborted
	}
	s.mu.Unlock()

	// core.New is bounded by the lock timeout; its vault is only
	// reachable once it returns.
	if phase == phaseOpening {
		<-s.opened
	}

	fmt.Fprintln(os.Stderr, "Interrupted")
	s.Close()
	s.exit(130)
}

func (s *Session) beginOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == phaseAborted {
		return errInterrupted
	}
	s.phase = phaseOpening
	return nil
}

func (s *Session) finishOpen(engine *core.Engine) {
	s.mu.Lock()
	s.Engine = engine
	s.phase = phaseOpen
	s.mu.Unlock()
	close(s.opened)
}

// open builds the logger and the engine. secret is wiped.
func (s *Session) open(secret []byte) error {
	defer crypto.ClearBytes(secret)

	logger, err := NewLogger(s.Config.LogLevel)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.Logger = logger
	s.mu.Unlock()

	if err := s.beginOpen(); err != nil {
		return err
	}

	engine, err := core.New(s.Config.Path, secret,
		core.WithLogger(logger),
		core.WithDriver(s.Config.StoreOptions().Driver),
		core.WithLockTimeout(s.Config.LockTimeout),
		core.WithShutdownTimeout(s.Config.ShutdownTimeout),
	)
	s.finishOpen(engine)
	return err
}

// Close closes the engine, flushes the logger and stops signal handling.
// It is safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		s.closing.Store(true)
		if s.stop != nil {
			s.stop()
		}

		s.mu.Lock()
		engine, logger := s.Engine, s.Logger
		s.mu.Unlock()

		if engine != nil {
			if err := engine.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %s\n", err)
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}

		if s.metrics != nil {
			fmt.Fprintln(s.metrics, "Metrics:")
			metrics.Write(s.metrics)
		}
	})
}

// OpenSession loads configuration, resolves the secret key and opens the
// engine. It exits on error.
func OpenSession(g Globals) *Session {
	cfg, err := LoadConfig(g)
	if err != nil {
		HandleError(err)
	}

	s := watchSignals(cfg)
	if g.Metrics {
		s.metrics = os.Stderr
	}

	secret, err := ResolveSecret(cfg, g.Prompt)
	if err != nil {
		s.Close()
		HandleError(err)
	}

	if err := s.open(secret); err != nil {
		s.Close()
		HandleError(err)
	}
	return s
}

// openWithSecret opens the engine with secret, which is wiped. It exits on
// error.
func openWithSecret(cfg *Config, secret []byte) *Session {
	s := watchSignals(cfg)
	if err := s.open(secret); err != nil {
		s.Close()
		HandleError(err)
	}
	return s
}
