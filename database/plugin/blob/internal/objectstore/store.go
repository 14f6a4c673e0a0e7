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

// Package objectstore implements the blob store contract on top of a flat
// object bucket. Writes are buffered in the transaction and only reach the
// bucket on commit, so a rolled back call leaves no trace. Buckets have no
// multi-object writes, so a commit first stores an undo journal with the
// previous value of every key it touches. A commit that fails part way is
// undone from the journal, immediately or by Recover on the next start.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/desci/database/types"
)

const (
	DefaultTimeout         = 60 * time.Second
	commitTimestampBlobKey = "metadata_commit_timestamp"
	undoJournalKey         = "objectstore_undo_journal"
)

var ErrTxnFinished = errors.New("transaction already finished")

// Backend is the object API a bucket provider exposes. Get returns
// types.ErrBlobKeyNotFound for a missing object, and Delete of a missing
// object is not an error.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

type storeMetrics struct {
	ops   *prometheus.CounterVec
	bytes prometheus.Counter
}

type Store struct {
	backend Backend
	logger  *slog.Logger
	metrics *storeMetrics
	timeout time.Duration
	// Serializes commits so that buffered writes land in txn order
	commitMu sync.Mutex
}

func New(backend Backend, logger *slog.Logger, timeout time.Duration) *Store {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		backend: backend,
		logger:  logger,
		timeout: timeout,
	}
}

// RegisterMetrics adds operation counters with the given metric name prefix
func (s *Store) RegisterMetrics(registry prometheus.Registerer, prefix string) {
	factory := promauto.With(registry)
	s.metrics = &storeMetrics{
		ops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "ops_total",
				Help: "Total number of object store operations",
			},
			[]string{"op"},
		),
		bytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "bytes_total",
				Help: "Total bytes read and written by object store operations",
			},
		),
	}
}

func (s *Store) observe(op string, size int) {
	if s.metrics == nil {
		return
	}
	s.metrics.ops.WithLabelValues(op).Inc()
	s.metrics.bytes.Add(float64(size))
}

func (s *Store) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// objectTxn buffers writes until commit. A nil pending value marks a delete.
type objectTxn struct {
	store     *Store
	pending   map[string][]byte
	readWrite bool
	finished  bool
}

func (s *Store) NewTransaction(readWrite bool) types.Txn {
	return &objectTxn{
		store:     s,
		pending:   make(map[string][]byte),
		readWrite: readWrite,
	}
}

// undoEntry is the value a key held before a commit. Present is false when
// the key did not exist.
type undoEntry struct {
	cbor.StructAsArray
	Key     string
	Value   []byte
	Present bool
}

func (t *objectTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if len(t.pending) == 0 {
		return nil
	}
	s := t.store
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	keys := make([]string, 0, len(t.pending))
	for key := range t.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	journal, err := s.writeJournal(keys)
	if err != nil {
		return fmt.Errorf("write undo journal: %w", err)
	}
	for _, key := range keys {
		if err := s.apply(key, t.pending[key]); err != nil {
			s.logger.Error(
				"failed to commit object, undoing commit",
				"component", "database",
				"key", key,
				"error", err,
			)
			if undoErr := s.undo(journal); undoErr != nil {
				return errors.Join(
					err,
					fmt.Errorf("undo left for recovery: %w", undoErr),
				)
			}
			return err
		}
	}
	if err := s.deleteJournal(); err != nil {
		// A journal left behind would undo this commit on the next start
		if undoErr := s.undo(journal); undoErr != nil {
			return errors.Join(
				err,
				fmt.Errorf("undo left for recovery: %w", undoErr),
			)
		}
		return err
	}
	t.pending = nil
	return nil
}

// apply writes one object, or deletes it for a nil value
func (s *Store) apply(key string, val []byte) error {
	ctx, cancel := s.opContext()
	defer cancel()
	if val == nil {
		s.observe("delete", 0)
		return s.backend.Delete(ctx, key)
	}
	s.observe("put", len(val))
	return s.backend.Put(ctx, key, val)
}

// writeJournal records the current value of keys before they are changed
func (s *Store) writeJournal(keys []string) ([]undoEntry, error) {
	journal := make([]undoEntry, 0, len(keys))
	for _, key := range keys {
		ctx, cancel := s.opContext()
		val, err := s.backend.Get(ctx, key)
		cancel()
		switch {
		case err == nil:
			s.observe("get", len(val))
			journal = append(
				journal,
				undoEntry{Key: key, Value: val, Present: true},
			)
		case errors.Is(err, types.ErrBlobKeyNotFound):
			journal = append(journal, undoEntry{Key: key})
		default:
			return nil, err
		}
	}
	data, err := cbor.Encode(journal)
	if err != nil {
		return nil, err
	}
	if err := s.apply(undoJournalKey, data); err != nil {
		return nil, err
	}
	return journal, nil
}

func (s *Store) deleteJournal() error {
	return s.apply(undoJournalKey, nil)
}

// undo restores every journal entry and then drops the journal
func (s *Store) undo(journal []undoEntry) error {
	for _, entry := range journal {
		var val []byte
		if entry.Present {
			// A present empty object must not turn into a delete
			val = entry.Value
			if val == nil {
				val = []byte{}
			}
		}
		if err := s.apply(entry.Key, val); err != nil {
			return err
		}
	}
	return s.deleteJournal()
}

// Recover undoes a commit that was interrupted before it finished. It is a
// no-op when no undo journal exists.
func (s *Store) Recover() error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	ctx, cancel := s.opContext()
	data, err := s.backend.Get(ctx, undoJournalKey)
	cancel()
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil
		}
		return fmt.Errorf("read undo journal: %w", err)
	}
	var journal []undoEntry
	if _, err := cbor.Decode(data, &journal); err != nil {
		return fmt.Errorf("decode undo journal: %w", err)
	}
	s.logger.Warn(
		"undoing interrupted commit",
		"component", "database",
		"keys", len(journal),
	)
	if err := s.undo(journal); err != nil {
		return fmt.Errorf("undo interrupted commit: %w", err)
	}
	return nil
}

func (t *objectTxn) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	t.pending = nil
	return nil
}

func (s *Store) validateTxn(txn types.Txn) (*objectTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	t, ok := txn.(*objectTxn)
	if !ok || t.store != s {
		return nil, types.ErrTxnWrongType
	}
	if t.finished {
		return nil, ErrTxnFinished
	}
	return t, nil
}

func (s *Store) writableTxn(txn types.Txn) (*objectTxn, error) {
	t, err := s.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	if !t.readWrite {
		return nil, types.ErrReadOnlyTxn
	}
	return t, nil
}

func (s *Store) Get(txn types.Txn, key []byte) ([]byte, error) {
	t, err := s.validateTxn(txn)
	if err != nil {
		return nil, err
	}
	if val, ok := t.pending[string(key)]; ok {
		if val == nil {
			return nil, types.ErrBlobKeyNotFound
		}
		return slices.Clone(val), nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	val, err := s.backend.Get(ctx, string(key))
	if err != nil {
		return nil, err
	}
	s.observe("get", len(val))
	return val, nil
}

func (s *Store) Set(txn types.Txn, key []byte, val []byte) error {
	t, err := s.writableTxn(txn)
	if err != nil {
		return err
	}
	// Empty values are stored as empty, not as deletes
	stored := make([]byte, len(val))
	copy(stored, val)
	t.pending[string(key)] = stored
	return nil
}

func (s *Store) Delete(txn types.Txn, key []byte) error {
	t, err := s.writableTxn(txn)
	if err != nil {
		return err
	}
	t.pending[string(key)] = nil
	return nil
}

// NewIterator lists the bucket keys under the prefix merged with the writes
// pending in txn. Values are fetched lazily through the transaction.
func (s *Store) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	t, err := s.validateTxn(txn)
	if err != nil {
		return &iterator{err: err}
	}
	ctx, cancel := s.opContext()
	defer cancel()
	prefix := string(opts.Prefix)
	listed, err := s.backend.List(ctx, prefix)
	if err != nil {
		s.logger.Error(
			"failed to list objects",
			"component", "database",
			"prefix", prefix,
			"error", err,
		)
		return &iterator{err: err}
	}
	s.observe("list", 0)
	keySet := make(map[string]struct{}, len(listed))
	for _, key := range listed {
		if key == undoJournalKey {
			continue
		}
		keySet[key] = struct{}{}
	}
	for key, val := range t.pending {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if val == nil {
			delete(keySet, key)
		} else {
			keySet[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if opts.Reverse {
		slices.Reverse(keys)
	}
	return &iterator{
		store:   s,
		txn:     t,
		keys:    keys,
		reverse: opts.Reverse,
	}
}

func (s *Store) GetCommitTimestamp() (int64, error) {
	txn := s.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := s.Get(txn, []byte(commitTimestampBlobKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return new(big.Int).SetBytes(val).Int64(), nil
}

func (s *Store) SetCommitTimestamp(timestamp int64, txn types.Txn) error {
	tmpTimestamp := new(big.Int).SetInt64(timestamp)
	return s.Set(txn, []byte(commitTimestampBlobKey), tmpTimestamp.Bytes())
}

type iterator struct {
	store   *Store
	txn     *objectTxn
	err     error
	keys    []string
	idx     int
	reverse bool
}

func (it *iterator) Rewind() {
	it.idx = 0
}

func (it *iterator) Seek(prefix []byte) {
	target := string(prefix)
	it.idx = len(it.keys)
	for i, key := range it.keys {
		if (!it.reverse && key >= target) || (it.reverse && key <= target) {
			it.idx = i
			return
		}
	}
}

func (it *iterator) Valid() bool {
	return it.err == nil && it.idx < len(it.keys)
}

func (it *iterator) ValidForPrefix(prefix []byte) bool {
	return it.Valid() && strings.HasPrefix(it.keys[it.idx], string(prefix))
}

func (it *iterator) Next() {
	if it.idx < len(it.keys) {
		it.idx++
	}
}

func (it *iterator) Item() types.BlobItem {
	if !it.Valid() {
		return nil
	}
	return &item{store: it.store, txn: it.txn, key: it.keys[it.idx]}
}

func (it *iterator) Close() {}

func (it *iterator) Err() error {
	return it.err
}

type item struct {
	store *Store
	txn   *objectTxn
	key   string
}

func (i *item) Key() []byte {
	return []byte(i.key)
}

func (i *item) ValueCopy(dst []byte) ([]byte, error) {
	val, err := i.store.Get(i.txn, []byte(i.key))
	if err != nil {
		return nil, err
	}
	return append(dst[:0], val...), nil
}
