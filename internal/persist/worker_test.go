package persist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/illarion/haredb/internal/storage"
)

// memStore records every call in order.
type memStore struct {
	mu      sync.Mutex
	ops     []string
	rows    map[string]string
	failPut bool
	closed  bool
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]string{}}
}

func (m *memStore) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}

func (m *memStore) EnsureSchema() error                      { m.record("schema"); return nil }
func (m *memStore) GetMeta(string) (string, error)           { return "", storage.ErrNotFound }
func (m *memStore) PutMeta(string, string) error             { return nil }
func (m *memStore) Count() (int, error)                      { return len(m.rows), nil }
func (m *memStore) Compact() error                           { return nil }
func (m *memStore) Path() string                             { return "mem" }
func (m *memStore) ForEach(func(string, string) error) error { return nil }

func (m *memStore) Put(key, value string) error {
	m.record("put " + key + "=" + value)
	if m.failPut {
		return errors.New("disk full")
	}
	m.mu.Lock()
	m.rows[key] = value
	m.mu.Unlock()
	return nil
}

func (m *memStore) Delete(key string) error {
	m.record("delete " + key)
	m.mu.Lock()
	delete(m.rows, key)
	m.mu.Unlock()
	return nil
}

func (m *memStore) Close() error {
	m.record("close")
	m.closed = true
	return nil
}

func opener(store *memStore) Opener {
	return func(string, storage.Options) (storage.Store, error) {
		return store, nil
	}
}

func waitDone(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Wait(ctx))
}

func TestWorker_AppliesInOrder(t *testing.T) {
	store := newMemStore()
	w := NewWorker(WithOpener(opener(store)))

	w.Dispatch(Startup{Path: "ignored"})
	var want []string
	want = append(want, "schema")
	for i := 0; i < 500; i++ {
		w.Dispatch(Set{Key: "k", Value: fmt.Sprint(i)})
		want = append(want, fmt.Sprintf("put k=%d", i))
	}
	w.Dispatch(Delete{Key: "k"})
	want = append(want, "delete k")
	w.Dispatch(Set{Key: "k", Value: "last"})
	want = append(want, "put k=last")
	w.Dispatch(Shutdown{})
	want = append(want, "close")

	waitDone(t, w)

	assert.Equal(t, want, store.ops)
	assert.Equal(t, "last", store.rows["k"])
	assert.True(t, store.closed)
}

func TestWorker_DispatchDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	store := newMemStore()
	slow := func(string, storage.Options) (storage.Store, error) {
		<-release
		return store, nil
	}
	w := NewWorker(WithOpener(slow))

	done := make(chan struct{})
	go func() {
		w.Dispatch(Startup{Path: "slow"})
		for i := 0; i < 10000; i++ {
			w.Dispatch(Set{Key: fmt.Sprint(i), Value: "v"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Dispatch blocked while the store was busy")
	}

	close(release)
	w.Dispatch(Shutdown{})
	waitDone(t, w)

	n, _ := store.Count()
	assert.Equal(t, 10000, n)
}

func TestWorker_DropsBeforeStartup(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := newMemStore()
	w := NewWorker(WithOpener(opener(store)), WithLogger(zap.New(core)))

	w.Dispatch(Set{Key: "early", Value: "v"})
	w.Dispatch(Shutdown{})
	waitDone(t, w)

	assert.Empty(t, store.ops)
	assert.Equal(t, 1, logs.FilterMessage("no open store, instruction dropped").Len())
}

func TestWorker_DropsAfterShutdown(t *testing.T) {
	store := newMemStore()
	w := NewWorker(WithOpener(opener(store)))

	w.Dispatch(Startup{})
	w.Dispatch(Shutdown{})
	waitDone(t, w)

	// Must neither block nor reach the store.
	w.Dispatch(Set{Key: "late", Value: "v"})
	w.Dispatch(Shutdown{})

	assert.Equal(t, []string{"schema", "close"}, store.ops)
}

func TestWorker_StoreErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store := newMemStore()
	store.failPut = true
	w := NewWorker(WithOpener(opener(store)), WithLogger(zap.New(core)))

	w.Dispatch(Startup{})
	w.Dispatch(Set{Key: "k", Value: "v"})
	w.Dispatch(Delete{Key: "k"})
	w.Dispatch(Shutdown{})
	waitDone(t, w)

	entries := logs.FilterMessage("failed to apply instruction").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "set", entries[0].ContextMap()["kind"])
	assert.Equal(t, []string{"schema", "put k=v", "delete k", "close"}, store.ops)
}

func TestWorker_OpenFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	failing := func(string, storage.Options) (storage.Store, error) {
		return nil, errors.New("permission denied")
	}
	w := NewWorker(WithOpener(failing), WithLogger(zap.New(core)))

	w.Dispatch(Startup{Path: "/nowhere"})
	w.Dispatch(Set{Key: "k", Value: "v"})
	w.Dispatch(Shutdown{})
	waitDone(t, w)

	assert.Equal(t, 1, logs.FilterMessage("failed to open store").Len())
}

func TestWorker_WaitTimeout(t *testing.T) {
	w := NewWorker(WithOpener(opener(newMemStore())))
	defer w.Dispatch(Shutdown{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.DeadlineExceeded)
}

func TestWorker_BoltRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.haredb")
	w := NewWorker()

	w.Dispatch(Startup{Path: path, Options: storage.Options{Driver: storage.DriverBolt}})
	w.Dispatch(Set{Key: "a", Value: "1"})
	w.Dispatch(Set{Key: "b", Value: "2"})
	w.Dispatch(Delete{Key: "b"})
	w.Dispatch(Delete{Key: "never-existed"})
	w.Dispatch(Shutdown{})
	waitDone(t, w)

	s, err := storage.Open(path, storage.Options{})
	require.NoError(t, err)
	defer s.Close()

	got := map[string]string{}
	require.NoError(t, s.ForEach(func(k, v string) error {
		got[k] = v
		return nil
	}))
	assert.Equal(t, map[string]string{"a": "1"}, got)
}
