package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// MaxBatchOps caps the number of writes committed per batch. Fan-out
// updates that touch more documents than this are split into multiple
// batches and committed separately.
const MaxBatchOps = 100

// BatchWriter accumulates writes into a BadgerDB WriteBatch, flushing
// automatically whenever maxSize operations are pending.
type BatchWriter struct {
	store   *Store
	batch   *badger.WriteBatch
	maxSize int
	count   int
}

// NewBatchWriter creates a batch writer. maxSize values outside
// (0, MaxBatchOps] are clamped to MaxBatchOps.
func (s *Store) NewBatchWriter(maxSize int) *BatchWriter {
	if maxSize <= 0 || maxSize > MaxBatchOps {
		maxSize = MaxBatchOps
	}
	return &BatchWriter{
		store:   s,
		batch:   s.db.NewWriteBatch(),
		maxSize: maxSize,
	}
}

// SetJSON marshals value and adds it to the batch under key.
func (b *BatchWriter) SetJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal batch value: %w", err)
	}
	return b.Set([]byte(key), data)
}

// Set adds a raw key/value pair to the batch.
func (b *BatchWriter) Set(key, value []byte) error {
	if err := b.batch.Set(key, value); err != nil {
		return fmt.Errorf("batch set: %w", err)
	}
	return b.bump()
}

// Delete adds a key deletion to the batch.
func (b *BatchWriter) Delete(key []byte) error {
	if err := b.batch.Delete(key); err != nil {
		return fmt.Errorf("batch delete: %w", err)
	}
	return b.bump()
}

// bump counts one pending operation and flushes a full batch.
func (b *BatchWriter) bump() error {
	b.count++
	if b.count < b.maxSize {
		return nil
	}
	if err := b.Flush(); err != nil {
		return fmt.Errorf("auto flush: %w", err)
	}
	return nil
}

// Flush commits all pending writes and resets the batch.
func (b *BatchWriter) Flush() error {
	if b.count == 0 {
		return nil
	}
	if err := b.batch.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}

	if b.store.logger != nil {
		b.store.logger.LogAttrs(context.Background(), slog.LevelDebug, "batch flushed",
			slog.Int("count", b.count))
	}

	b.count = 0
	b.batch = b.store.db.NewWriteBatch()
	return nil
}

// Cancel discards all pending writes in the batch.
func (b *BatchWriter) Cancel() {
	b.batch.Cancel()
	b.count = 0
}

// Count returns the number of pending operations.
func (b *BatchWriter) Count() int {
	return b.count
}
