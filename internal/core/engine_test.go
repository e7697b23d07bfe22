package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/haredb/internal/crypto"
	"github.com/illarion/haredb/internal/persist"
	"github.com/illarion/haredb/internal/storage"
	"github.com/illarion/haredb/internal/vault"
)

func secret() []byte {
	return []byte("correct horse battery staple")
}

func storePath(t *testing.T, driver storage.Driver) string {
	t.Helper()
	if driver == storage.DriverBadger {
		return filepath.Join(t.TempDir(), "store")
	}
	return filepath.Join(t.TempDir(), "store.db")
}

// recordingWorker never touches disk; it keeps every instruction.
type recordingWorker struct {
	mu      sync.Mutex
	got     []persist.Instruction
	waitErr error
}

func (w *recordingWorker) Dispatch(in persist.Instruction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.got = append(w.got, in)
}

func (w *recordingWorker) Wait(context.Context) error {
	return w.waitErr
}

func (w *recordingWorker) instructions() []persist.Instruction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]persist.Instruction(nil), w.got...)
}

func TestEngineScenario(t *testing.T) {
	for _, secure := range []bool{true, false} {
		name := "insecure"
		if secure {
			name = "secure"
		}
		t.Run(name, func(t *testing.T) {
			var key []byte
			if secure {
				key = secret()
			}
			e, err := New(storePath(t, storage.DriverBolt), key)
			require.NoError(t, err)
			defer e.Close()

			assert.Equal(t, secure, e.Secure())
			assert.Equal(t, Ready, e.State())

			existed, err := e.Set("user:1", "alice")
			require.NoError(t, err)
			assert.False(t, existed)

			v, ok, err := e.Get("user:1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "alice", v)

			existed, err = e.Set("user:1", "bob")
			require.NoError(t, err)
			assert.True(t, existed)

			v, _, err = e.Get("user:1")
			require.NoError(t, err)
			assert.Equal(t, "bob", v)

			existed, err = e.Delete("user:1")
			require.NoError(t, err)
			assert.True(t, existed)

			_, ok, err = e.Get("user:1")
			require.NoError(t, err)
			assert.False(t, ok)

			existed, err = e.Delete("user:1")
			require.NoError(t, err)
			assert.False(t, existed)
			assert.Equal(t, 0, e.Len())
		})
	}
}

func TestEngineSurvivesRestart(t *testing.T) {
	for _, driver := range []storage.Driver{storage.DriverBolt, storage.DriverBadger} {
		t.Run(string(driver), func(t *testing.T) {
			path := storePath(t, driver)

			e, err := New(path, secret(), WithDriver(driver))
			require.NoError(t, err)
			_, err = e.Set("a", "1")
			require.NoError(t, err)
			_, err = e.Set("b", "2")
			require.NoError(t, err)
			_, err = e.Set("a", "3")
			require.NoError(t, err)
			_, err = e.Delete("b")
			require.NoError(t, err)
			_, err = e.Set("empty", "")
			require.NoError(t, err)
			require.NoError(t, e.Close())

			e, err = New(path, secret(), WithDriver(driver))
			require.NoError(t, err)
			defer e.Close()

			assert.Equal(t, 2, e.Len())

			v, ok, err := e.Get("a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "3", v)

			_, ok, err = e.Get("b")
			require.NoError(t, err)
			assert.False(t, ok)

			v, ok, err = e.Get("empty")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "", v)
		})
	}
}

func TestEngineModeMismatch(t *testing.T) {
	t.Run("secure store opened insecure", func(t *testing.T) {
		path := storePath(t, storage.DriverBolt)
		e, err := New(path, secret())
		require.NoError(t, err)
		require.NoError(t, e.Close())

		_, err = New(path, nil)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("insecure store opened secure", func(t *testing.T) {
		path := storePath(t, storage.DriverBolt)
		e, err := New(path, nil)
		require.NoError(t, err)
		require.NoError(t, e.Close())

		_, err = New(path, secret())
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestEngineWrongKey(t *testing.T) {
	path := storePath(t, storage.DriverBolt)
	e, err := New(path, secret())
	require.NoError(t, err)
	_, err = e.Set("k", "v")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = New(path, []byte("wrong key"))
	assert.ErrorIs(t, err, ErrWrongKey)

	// The store is still usable with the right key.
	e, err = New(path, secret())
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, 1, e.Len())
}

func TestEngineWipesSecretKey(t *testing.T) {
	key := secret()
	e, err := New(storePath(t, storage.DriverBolt), key)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, make([]byte, len(key)), key)
}

func TestEngineCloseIdempotent(t *testing.T) {
	e, err := New(storePath(t, storage.DriverBolt), secret())
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, Closed, e.State())

	_, _, err = e.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.Set("k", "v")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = e.Delete("k")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngineDispatchesToWorker(t *testing.T) {
	w := &recordingWorker{}
	path := storePath(t, storage.DriverBolt)

	e, err := New(path, nil, WithWorker(w))
	require.NoError(t, err)

	_, err = e.Set("k", "v")
	require.NoError(t, err)
	_, err = e.Delete("missing")
	require.NoError(t, err)
	_, err = e.Delete("k")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	got := w.instructions()
	require.Len(t, got, 4)

	start, ok := got[0].(persist.Startup)
	require.True(t, ok)
	assert.Equal(t, path, start.Path)
	assert.Equal(t, storage.DriverBolt, start.Options.Driver)

	assert.Equal(t, persist.Set{Key: "k", Value: "v"}, got[1])
	assert.Equal(t, persist.Delete{Key: "k"}, got[2])
	assert.Equal(t, persist.Shutdown{}, got[3])
}

func TestEngineReadsBeforeFlush(t *testing.T) {
	// The worker never writes anything, the index still answers.
	w := &recordingWorker{}
	e, err := New(storePath(t, storage.DriverBolt), secret(), WithWorker(w))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Set("k", "v")
	require.NoError(t, err)

	v, ok, err := e.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestEngineSecureDispatchesCiphertext(t *testing.T) {
	w := &recordingWorker{}
	e, err := New(storePath(t, storage.DriverBolt), secret(), WithWorker(w))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Set("user:1", "alice")
	require.NoError(t, err)
	_, err = e.Set("user:1", "alice")
	require.NoError(t, err)

	got := w.instructions()
	require.Len(t, got, 3)
	first := got[1].(persist.Set)
	second := got[2].(persist.Set)

	assert.NotEqual(t, "user:1", first.Key)
	assert.NotEqual(t, "alice", first.Value)
	assert.Equal(t, first.Key, second.Key, "keys encrypt deterministically")
	assert.NotEqual(t, first.Value, second.Value, "values get a fresh nonce")
}

func TestEngineFailedNewShutsDownWorker(t *testing.T) {
	path := storePath(t, storage.DriverBolt)
	e, err := New(path, nil)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	w := &recordingWorker{}
	_, err = New(path, secret(), WithWorker(w))
	require.ErrorIs(t, err, ErrConfiguration)

	assert.Equal(t, []persist.Instruction{persist.Shutdown{}}, w.instructions())
}

func TestEngineCloseReportsBusyWorker(t *testing.T) {
	w := &recordingWorker{waitErr: context.DeadlineExceeded}
	e, err := New(storePath(t, storage.DriverBolt), nil,
		WithWorker(w), WithShutdownTimeout(time.Millisecond))
	require.NoError(t, err)

	err = e.Close()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Closed, e.State())
}

func TestEngineNoPlaintextOnDisk(t *testing.T) {
	path := storePath(t, storage.DriverBolt)
	e, err := New(path, secret())
	require.NoError(t, err)
	_, err = e.Set("plaintext-key-marker", "plaintext-value-marker")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "plaintext-key-marker")
	assert.NotContains(t, string(raw), "plaintext-value-marker")
	assert.NotContains(t, string(raw), secureTestString)
}

func TestEngineTamperedValue(t *testing.T) {
	path := storePath(t, storage.DriverBolt)
	e, err := New(path, secret())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// Write a row whose key matches but whose value was sealed with another key.
	right, err := vault.Secure(secret())
	require.NoError(t, err)
	defer right.Release()
	other, err := vault.Secure([]byte("some other key"))
	require.NoError(t, err)
	defer other.Release()

	encKey, err := crypto.NewCodec(right).EncryptKey("k")
	require.NoError(t, err)
	encValue, err := crypto.NewCodec(other).EncryptField("v")
	require.NoError(t, err)

	s, err := storage.Open(path, storage.Options{Driver: storage.DriverBolt})
	require.NoError(t, err)
	require.NoError(t, s.Put(encKey, encValue))
	require.NoError(t, s.Close())

	e, err = New(path, secret())
	require.NoError(t, err)
	defer e.Close()

	_, _, err = e.Get("k")
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestEngineMetadata(t *testing.T) {
	path := storePath(t, storage.DriverBadger)
	e, err := New(path, secret(), WithDriver(storage.DriverBadger))
	require.NoError(t, err)
	m := e.Metadata()
	require.NoError(t, e.Close())

	assert.True(t, m.Secure)
	assert.Equal(t, storage.SchemaVersion, m.Version)
	assert.Equal(t, storage.DriverBadger, m.Driver)
	assert.NotEmpty(t, m.StoreID)
	assert.NotEmpty(t, m.TestString)

	e, err = New(path, secret(), WithDriver(storage.DriverBadger))
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, m.StoreID, e.Metadata().StoreID)
}

func TestEngineBackfillsStoreID(t *testing.T) {
	path := storePath(t, storage.DriverBolt)

	// A store written before store ids existed: only the mode row.
	s, err := storage.Open(path, storage.Options{Driver: storage.DriverBolt})
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema())
	require.NoError(t, s.PutMeta(storage.MetaSecure, "false"))
	require.NoError(t, s.Close())

	e, err := New(path, nil)
	require.NoError(t, err)
	id := e.Metadata().StoreID
	require.NoError(t, e.Close())
	assert.NotEmpty(t, id)

	meta, _, err := storage.Inspect(path, storage.Options{Driver: storage.DriverBolt})
	require.NoError(t, err)
	assert.Equal(t, id, meta.StoreID)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "State(42)", State(42).String())
}
