// Copyright 2025 Blink Labs Software
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

package database

import (
	"github.com/blinklabs-io/desci/database/types"
)

// BlobGet returns the value stored under key, or types.ErrBlobKeyNotFound
func (t *Txn) BlobGet(key []byte) ([]byte, error) {
	if t.blobTxn == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return t.db.Blob().Get(t.blobTxn, key)
}

func (t *Txn) BlobSet(key []byte, val []byte) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	if !t.readWrite {
		return types.ErrReadOnlyTxn
	}
	return t.db.Blob().Set(t.blobTxn, key, val)
}

func (t *Txn) BlobDelete(key []byte) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	if !t.readWrite {
		return types.ErrReadOnlyTxn
	}
	return t.db.Blob().Delete(t.blobTxn, key)
}

// BlobIterate calls fn for every key with the given prefix, in key order.
// Iteration stops at the first error returned by fn.
func (t *Txn) BlobIterate(
	prefix []byte,
	fn func(key []byte, val []byte) error,
) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	it := t.db.Blob().NewIterator(
		t.blobTxn,
		types.BlobIteratorOptions{Prefix: prefix},
	)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.Key(), val); err != nil {
			return err
		}
	}
	return it.Err()
}
