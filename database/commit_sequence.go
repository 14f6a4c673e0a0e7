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

package database

import (
	"fmt"
)

// CommitSequenceError reports that the query index and the contract state
// were last committed by different transactions
type CommitSequenceError struct {
	MetadataSequence int64
	BlobSequence     int64
}

func (e CommitSequenceError) Error() string {
	return fmt.Sprintf(
		"commit sequence mismatch: index at %d, state at %d",
		e.MetadataSequence,
		e.BlobSequence,
	)
}

// CommitSequence returns the number of read-write commits that touched both
// stores
func (d *Database) CommitSequence() int64 {
	d.commitMu.Lock()
	defer d.commitMu.Unlock()
	return d.commitSeq
}

// loadCommitSequence reads the sequence from both stores. An index that has
// never been written is accepted and catches up on the next commit.
func (d *Database) loadCommitSequence() error {
	blobSeq, err := d.Blob().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("read blob commit sequence: %w", err)
	}
	metadataSeq, err := d.Metadata().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("read metadata commit sequence: %w", err)
	}
	d.commitSeq = max(blobSeq, metadataSeq)
	if metadataSeq <= 0 {
		return nil
	}
	if blobSeq != metadataSeq {
		return CommitSequenceError{
			MetadataSequence: metadataSeq,
			BlobSequence:     blobSeq,
		}
	}
	return nil
}

// writeCommitSequence stages seq in both halves of txn
func (d *Database) writeCommitSequence(txn *Txn, seq int64) error {
	if err := d.Metadata().SetCommitTimestamp(seq, txn.Metadata()); err != nil {
		return err
	}
	return d.Blob().SetCommitTimestamp(seq, txn.Blob())
}
