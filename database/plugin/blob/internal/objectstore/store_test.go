// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package objectstore_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/desci/database/plugin/blob/internal/objectstore"
	"github.com/blinklabs-io/desci/database/types"
)

// memBackend is an in-memory bucket
type memBackend struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failPuts bool
	// failPutAt fails the nth put attempt, counting from 1
	failPutAt int
	// failAfterFirst keeps failing every put after the first failure
	failAfterFirst bool
	attempts       int
	puts           int
}

func newMemBackend() *memBackend {
	return &memBackend{objects: make(map[string][]byte)}
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.objects[key]
	if !ok {
		return nil, types.ErrBlobKeyNotFound
	}
	return slices.Clone(val), nil
}

func (m *memBackend) Put(_ context.Context, key string, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.failPutAt > 0 && m.attempts == m.failPutAt {
		m.failPuts = m.failAfterFirst
		return errors.New("bucket unavailable")
	}
	if m.failPuts {
		return errors.New("bucket unavailable")
	}
	m.puts++
	m.objects[key] = slices.Clone(val)
	return nil
}

func (m *memBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memBackend) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ret []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			ret = append(ret, key)
		}
	}
	return ret, nil
}

func collectKeys(t *testing.T, store *objectstore.Store, txn types.Txn, prefix string, reverse bool) []string {
	t.Helper()
	iter := store.NewIterator(
		txn,
		types.BlobIteratorOptions{Prefix: []byte(prefix), Reverse: reverse},
	)
	defer iter.Close()
	var keys []string
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Item().Key()))
	}
	require.NoError(t, iter.Err())
	return keys
}

func TestWritesAreBufferedUntilCommit(t *testing.T) {
	backend := newMemBackend()
	store := objectstore.New(backend, nil, 0)

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k1"), []byte("v1")))
	// Read your own writes
	val, err := store.Get(txn, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), val)
	assert.Equal(t, 0, backend.puts)

	require.NoError(t, txn.Commit())
	// The undo journal is written first and removed once the commit lands
	assert.Equal(t, 2, backend.puts)
	assert.Equal(t, map[string][]byte{"k1": []byte("v1")}, backend.objects)
	// Second commit is a no-op
	require.NoError(t, txn.Commit())
}

func TestRollbackLeavesBucketUntouched(t *testing.T) {
	backend := newMemBackend()
	backend.objects["keep"] = []byte("old")
	store := objectstore.New(backend, nil, 0)

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("new"), []byte("v")))
	require.NoError(t, store.Delete(txn, []byte("keep")))
	require.NoError(t, txn.Rollback())
	assert.ErrorIs(t, store.Set(txn, []byte("k"), []byte("v")), objectstore.ErrTxnFinished)

	assert.Equal(t, map[string][]byte{"keep": []byte("old")}, backend.objects)
}

func TestDeleteHidesObjectInTxn(t *testing.T) {
	backend := newMemBackend()
	backend.objects["a1"] = []byte("x")
	backend.objects["a2"] = []byte("y")
	store := objectstore.New(backend, nil, 0)

	txn := store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, []byte("a1")))
	_, err := store.Get(txn, []byte("a1"))
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	require.NoError(t, store.Set(txn, []byte("a0"), []byte{}))
	assert.Equal(t, []string{"a0", "a2"}, collectKeys(t, store, txn, "a", false))
	require.NoError(t, txn.Commit())

	assert.NotContains(t, backend.objects, "a1")
	assert.Contains(t, backend.objects, "a0")
}

func TestIteratorOrderAndPrefix(t *testing.T) {
	backend := newMemBackend()
	for _, key := range []string{"b2", "a1", "b1", "c1"} {
		backend.objects[key] = []byte(key)
	}
	store := objectstore.New(backend, nil, 0)
	txn := store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck

	assert.Equal(t, []string{"b1", "b2"}, collectKeys(t, store, txn, "b", false))
	assert.Equal(t, []string{"b2", "b1"}, collectKeys(t, store, txn, "b", true))

	iter := store.NewIterator(txn, types.BlobIteratorOptions{})
	defer iter.Close()
	iter.Seek([]byte("b2"))
	require.True(t, iter.ValidForPrefix([]byte("b")))
	val, err := iter.Item().ValueCopy(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("b2"), val)
	iter.Next()
	assert.False(t, iter.ValidForPrefix([]byte("b")))
}

func TestReadOnlyAndForeignTxn(t *testing.T) {
	storeA := objectstore.New(newMemBackend(), nil, 0)
	storeB := objectstore.New(newMemBackend(), nil, 0)

	readTxn := storeA.NewTransaction(false)
	defer readTxn.Rollback() //nolint:errcheck
	assert.ErrorIs(t, storeA.Set(readTxn, []byte("k"), []byte("v")), types.ErrReadOnlyTxn)
	assert.ErrorIs(t, storeA.Delete(readTxn, []byte("k")), types.ErrReadOnlyTxn)

	_, err := storeB.Get(readTxn, []byte("k"))
	assert.ErrorIs(t, err, types.ErrTxnWrongType)
	_, err = storeA.Get(nil, []byte("k"))
	assert.ErrorIs(t, err, types.ErrNilTxn)

	iter := storeB.NewIterator(readTxn, types.BlobIteratorOptions{})
	assert.False(t, iter.Valid())
	assert.ErrorIs(t, iter.Err(), types.ErrTxnWrongType)
}

func TestCommitFailureIsReported(t *testing.T) {
	backend := newMemBackend()
	backend.failPuts = true
	store := objectstore.New(backend, nil, 0)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("v")))
	assert.Error(t, txn.Commit())
}

func TestCommitTimestampAndMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	store := objectstore.New(newMemBackend(), nil, 0)
	store.RegisterMetrics(registry, "database_blob_")

	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)

	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(1700000000123, txn))
	require.NoError(t, txn.Commit())
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123), ts)

	count, err := testutil.GatherAndCount(
		registry,
		"database_blob_ops_total",
		"database_blob_bytes_total",
	)
	require.NoError(t, err)
	// get, put and delete op series plus the byte counter
	assert.Equal(t, 4, count)
}

func seedObjects() map[string][]byte {
	return map[string][]byte{
		"a": []byte("old-a"),
		"c": []byte("old-c"),
		"e": {},
	}
}

func stageChanges(t *testing.T, store *objectstore.Store) types.Txn {
	t.Helper()
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("a"), []byte("new-a")))
	require.NoError(t, store.Set(txn, []byte("b"), []byte("new-b")))
	require.NoError(t, store.Delete(txn, []byte("c")))
	require.NoError(t, store.Set(txn, []byte("e"), []byte("new-e")))
	return txn
}

func TestPartialCommitIsUndone(t *testing.T) {
	backend := newMemBackend()
	backend.objects = seedObjects()
	// Journal is put 1 and "a" is put 2, so "b" fails after "a" landed
	backend.failPutAt = 3
	store := objectstore.New(backend, nil, 0)

	txn := stageChanges(t, store)
	require.Error(t, txn.Commit())
	assert.Equal(t, seedObjects(), backend.objects)
}

func TestInterruptedCommitRecoveredOnStart(t *testing.T) {
	backend := newMemBackend()
	backend.objects = seedObjects()
	backend.failPutAt = 3
	backend.failAfterFirst = true
	store := objectstore.New(backend, nil, 0)

	txn := stageChanges(t, store)
	require.Error(t, txn.Commit())
	// The undo failed too, so the bucket holds half a commit and the journal
	assert.Equal(t, []byte("new-a"), backend.objects["a"])
	assert.Len(t, backend.objects, 4)

	backend.failPuts = false
	backend.failPutAt = 0
	restarted := objectstore.New(backend, nil, 0)
	require.NoError(t, restarted.Recover())
	assert.Equal(t, seedObjects(), backend.objects)
	// Nothing left to recover
	require.NoError(t, restarted.Recover())
}

func TestJournalHiddenFromIterators(t *testing.T) {
	backend := newMemBackend()
	backend.objects = seedObjects()
	backend.failPutAt = 3
	backend.failAfterFirst = true
	store := objectstore.New(backend, nil, 0)
	require.Error(t, stageChanges(t, store).Commit())

	txn := store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	assert.Equal(t, []string{"a", "c", "e"}, collectKeys(t, store, txn, "", false))
}
