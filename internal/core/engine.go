package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/illarion/haredb/internal/crypto"
	"github.com/illarion/haredb/internal/index"
	"github.com/illarion/haredb/internal/metrics"
	"github.com/illarion/haredb/internal/persist"
	"github.com/illarion/haredb/internal/storage"
	"github.com/illarion/haredb/internal/vault"
)

// secureTestString is encrypted into the meta table of a secure store and
// decrypted at every open to check the key.
const secureTestString = "haredb-secure-test-string"

// State is the engine lifecycle stage.
type State int

const (
	Uninitialized State = iota
	SecuringKey
	Reconciling
	Starting
	Ready
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SecuringKey:
		return "securing-key"
	case Reconciling:
		return "reconciling"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Engine is an encrypted key-value store backed by an in-memory index and a
// write-behind durable store. Methods are safe for concurrent use; they are
// serialized internally.
type Engine struct {
	mu    sync.Mutex
	path  string
	opts  options
	state State

	vault  *vault.Vault
	codec  *crypto.Codec
	index  *index.Index
	worker Dispatcher
	meta   *storage.Metadata
}

// New opens the store at path. A non-empty secretKey selects secure mode; the
// slice is wiped. An empty one selects insecure mode.
//
// New fails with ErrFatalSecurity, ErrConfiguration or ErrWrongKey (wrapped),
// or with a storage error. On failure nothing is left open.
func New(path string, secretKey []byte, opts ...Option) (*Engine, error) {
	o := options{
		logger:          zap.NewNop(),
		driver:          storage.DriverBolt,
		lockTimeout:     storage.DefaultLockTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Named("engine")

	e := &Engine{
		path:  path,
		opts:  o,
		state: Uninitialized,
	}

	if err := e.start(secretKey); err != nil {
		e.vault.Release()
		if o.worker != nil {
			o.worker.Dispatch(persist.Shutdown{})
		}
		e.state = Closed
		return nil, err
	}

	return e, nil
}

func (e *Engine) start(secretKey []byte) error {
	if len(secretKey) > 0 {
		e.state = SecuringKey
		v, err := vault.Secure(secretKey)
		if err != nil {
			return err
		}
		e.vault = v
		e.codec = crypto.NewCodec(v)
	}

	e.state = Reconciling
	if err := e.reconcile(); err != nil {
		return err
	}

	e.state = Starting
	e.worker = e.opts.worker
	if e.worker == nil {
		e.worker = persist.NewWorker(persist.WithLogger(e.opts.logger))
	}
	e.worker.Dispatch(persist.Startup{
		Path:    e.path,
		Options: e.storeOptions(),
	})

	e.state = Ready
	e.opts.logger.Info("engine ready",
		zap.String("path", e.path),
		zap.Bool("secure", e.Secure()),
		zap.Int("entries", e.index.Len()))

	return nil
}

func (e *Engine) storeOptions() storage.Options {
	return storage.Options{
		Driver:      e.opts.driver,
		LockTimeout: e.opts.lockTimeout,
		Logger:      e.opts.logger,
	}
}

// reconcile opens the store directly, checks its mode and key, loads every
// row and closes the handle again.
func (e *Engine) reconcile() (err error) {
	store, err := storage.Open(e.path, e.storeOptions())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close store: %w", cerr)
		}
	}()

	if err := store.EnsureSchema(); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	secure := e.codec != nil

	meta, err := storage.ReadMetadata(store)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}
	if meta == nil {
		if meta, err = storage.InitMetadata(store, secure, e.opts.driver); err != nil {
			return fmt.Errorf("failed to initialize metadata: %w", err)
		}
		e.opts.logger.Info("store initialized", zap.String("path", e.path), zap.Bool("secure", secure))
	}

	if meta.StoreID == "" {
		if meta.StoreID, err = storage.GetOrCreateStoreID(store); err != nil {
			return fmt.Errorf("failed to backfill store id: %w", err)
		}
	}

	if meta.Secure != secure {
		return fmt.Errorf("%w: store secure=%t, requested secure=%t", ErrConfiguration, meta.Secure, secure)
	}

	if secure {
		if err := e.verifyKey(store, meta); err != nil {
			return err
		}
	}
	e.meta = meta

	n, err := store.Count()
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}

	idx := index.New(n)
	if err := store.ForEach(func(k, v string) error {
		idx.Set(k, v)
		return nil
	}); err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}
	e.index = idx
	metrics.EngineLoaded.Update(int64(idx.Len()))

	return nil
}

// verifyKey checks the stored test string, writing it first if the store
// does not have one yet.
func (e *Engine) verifyKey(store storage.Store, meta *storage.Metadata) error {
	if meta.TestString == "" {
		ct, err := e.codec.EncryptField(secureTestString)
		if err != nil {
			return fmt.Errorf("failed to encrypt test string: %w", err)
		}
		if err := store.PutMeta(storage.MetaTestString, ct); err != nil {
			return fmt.Errorf("failed to store test string: %w", err)
		}
		meta.TestString = ct
	}

	pt, err := e.codec.DecryptField(meta.TestString)
	if err != nil {
		if errors.Is(err, vault.ErrReleased) {
			return err
		}
		return ErrWrongKey
	}
	if !crypto.ConstantTimeCompare([]byte(pt), []byte(secureTestString)) {
		return ErrWrongKey
	}
	return nil
}

func (e *Engine) encodeKey(key string) (string, error) {
	if e.codec == nil {
		return key, nil
	}
	return e.codec.EncryptKey(key)
}

func (e *Engine) encodeValue(value string) (string, error) {
	if e.codec == nil {
		return value, nil
	}
	return e.codec.EncryptField(value)
}

// Get returns the value stored under key. ok is false if the key is absent.
// A value that fails authentication returns an error wrapping ErrDecryption.
func (e *Engine) Get(key string) (value string, ok bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Ready {
		return "", false, ErrClosed
	}
	metrics.EngineGets.Inc(1)

	k, err := e.encodeKey(key)
	if err != nil {
		return "", false, fmt.Errorf("failed to encrypt key: %w", err)
	}

	stored, ok := e.index.Get(k)
	if !ok {
		return "", false, nil
	}
	if e.codec == nil {
		return stored, true, nil
	}

	value, err = e.codec.DecryptField(stored)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key and reports whether the key already existed.
// The write reaches disk asynchronously.
func (e *Engine) Set(key, value string) (existed bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Ready {
		return false, ErrClosed
	}
	metrics.EngineSets.Inc(1)

	k, err := e.encodeKey(key)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt key: %w", err)
	}
	v, err := e.encodeValue(value)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt value: %w", err)
	}

	existed = e.index.Set(k, v)
	e.worker.Dispatch(persist.Set{Key: k, Value: v})

	return existed, nil
}

// Delete removes key and reports whether it existed. Absent keys are not
// dispatched to the worker.
func (e *Engine) Delete(key string) (existed bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Ready {
		return false, ErrClosed
	}
	metrics.EngineDeletes.Inc(1)

	k, err := e.encodeKey(key)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt key: %w", err)
	}

	if !e.index.Delete(k) {
		return false, nil
	}
	e.worker.Dispatch(persist.Delete{Key: k})

	return true, nil
}

// Close stops the worker, waiting up to the shutdown timeout for pending
// writes, and releases the secret key. Calling it again does nothing.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Closing || e.state == Closed {
		return nil
	}
	e.state = Closing

	var errs []error

	e.worker.Dispatch(persist.Shutdown{})
	if e.opts.shutdownTimeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.shutdownTimeout)
		if err := e.worker.Wait(ctx); err != nil {
			e.opts.logger.Warn("persistence worker still busy at close", zap.Error(err))
			errs = append(errs, fmt.Errorf("persistence worker did not stop: %w", err))
		}
		cancel()
	}

	if err := e.vault.Release(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release secret key: %w", err))
	}

	e.state = Closed
	e.opts.logger.Debug("engine closed", zap.String("path", e.path))

	return errors.Join(errs...)
}

// State returns the lifecycle stage
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Len returns the number of entries in the index
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil {
		return 0
	}
	return e.index.Len()
}

// Secure reports whether the engine encrypts keys and values
func (e *Engine) Secure() bool {
	return e.codec != nil
}

// Path returns the store path
func (e *Engine) Path() string {
	return e.path
}

// Metadata returns a copy of the store metadata read at startup
func (e *Engine) Metadata() storage.Metadata {
	return *e.meta
}
