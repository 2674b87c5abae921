package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity provides generic CRUD operations for any domain type.
type Entity[T any] struct {
	store   *Store
	prefix  string
	indexes []Index[T]
}

// Index defines a secondary index on an entity. Unique indexes map one
// key to one entity ID and reject conflicting writes. Multi indexes
// allow many entities per key and support listing.
type Index[T any] struct {
	name            string
	keyGen          func(*T) []string
	lookupTransform func(string) string
	multi           bool
}

// NewEntity creates a new Entity instance for type T.
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{store: s, prefix: prefix}
}

// WithIndex adds a unique secondary index to the entity.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen})
	return e
}

// WithIndexTransform adds a unique secondary index whose lookup values
// pass through lookupTransform first, enabling case-insensitive or
// normalized searches.
func (e *Entity[T]) WithIndexTransform(name string, keyGen func(*T) []string, lookupTransform func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, lookupTransform: lookupTransform})
	return e
}

// WithMultiIndex adds a non-unique secondary index to the entity.
// Multiple entities may share the same index key; use ListByIndex to
// read them.
func (e *Entity[T]) WithMultiIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, multi: true})
	return e
}

// indexEntryKey builds the full database key for one index entry. Multi
// index entries carry the entity ID as a key suffix so they never
// collide.
func (e *Entity[T]) indexEntryKey(idx Index[T], indexKey, id string) string {
	if idx.multi {
		return e.prefix + "idx:" + idx.name + ":" + indexKey + ":" + id
	}
	return e.prefix + "idx:" + idx.name + ":" + indexKey
}

// ensureUniqueIndexes fails with ErrAlreadyExists when any unique index
// key of entity is already taken. Keys listed in skip are exempt, which
// lets Update reuse the keys the old revision held.
func (e *Entity[T]) ensureUniqueIndexes(txn *badger.Txn, entity *T, id string, skip map[string]bool) error {
	for _, idx := range e.indexes {
		if idx.multi {
			continue
		}
		for _, indexKey := range idx.keyGen(entity) {
			if skip[indexKey] {
				continue
			}
			_, err := txn.Get([]byte(e.indexEntryKey(idx, indexKey, id)))
			switch {
			case err == nil:
				return fmt.Errorf("index %s conflict on key %s: %w", idx.name, indexKey, ErrAlreadyExists)
			case !errors.Is(err, badger.ErrKeyNotFound):
				return fmt.Errorf("failed to check index key: %w", err)
			}
		}
	}
	return nil
}

// putIndexEntries writes every index entry for entity.
func (e *Entity[T]) putIndexEntries(txn *badger.Txn, entity *T, id string) error {
	for _, idx := range e.indexes {
		for _, indexKey := range idx.keyGen(entity) {
			if err := txn.Set([]byte(e.indexEntryKey(idx, indexKey, id)), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	return nil
}

// dropIndexEntries removes every index entry for entity.
func (e *Entity[T]) dropIndexEntries(txn *badger.Txn, entity *T, id string) error {
	for _, idx := range e.indexes {
		for _, indexKey := range idx.keyGen(entity) {
			if err := txn.Delete([]byte(e.indexEntryKey(idx, indexKey, id))); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	return nil
}

// readInto loads and decodes the entity stored at key within txn.
func readInto[T any](txn *badger.Txn, key string, dst *T) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get key: %w", err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, dst); err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		return nil
	})
}

// Create creates a new entity with the given ID. Returns
// ErrAlreadyExists if an entity with this ID already exists.
func (e *Entity[T]) Create(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	key := e.prefix + id

	return e.store.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return ErrAlreadyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}
		if err := e.ensureUniqueIndexes(txn, entity, id, nil); err != nil {
			return err
		}
		if err := txn.Set([]byte(key), data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return e.putIndexEntries(txn, entity, id)
	})
}

// Get retrieves an entity by ID. Returns ErrNotFound if the entity does
// not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity T
	err := e.store.db.View(func(txn *badger.Txn) error {
		return readInto(txn, e.prefix+id, &entity)
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// GetByIndex retrieves an entity by a unique secondary index. If the
// index has a lookup transform it is applied to value first.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, idx := range e.indexes {
		if idx.name == indexName && idx.lookupTransform != nil {
			value = idx.lookupTransform(value)
			break
		}
	}
	indexKey := []byte(e.prefix + "idx:" + indexName + ":" + value)

	var id string
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return e.Get(ctx, id)
}

// ListByIndex returns all entity IDs for a multi index key. The
// returned IDs can be resolved with Get; a missing entity is a broken
// index entry and should be treated as absent rather than an error.
func (e *Entity[T]) ListByIndex(ctx context.Context, indexName, value string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(e.prefix + "idx:" + indexName + ":" + value + ":")

	var ids []string
	err := e.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ids = append(ids, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Update replaces an existing entity, rewriting its index entries.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Update(ctx context.Context, id string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	key := e.prefix + id

	return e.store.db.Update(func(txn *badger.Txn) error {
		var oldEntity T
		if err := readInto(txn, key, &oldEntity); err != nil {
			return err
		}
		if err := e.dropIndexEntries(txn, &oldEntity, id); err != nil {
			return err
		}

		// Unique keys carried over from the old revision are not conflicts.
		held := make(map[string]bool)
		for _, idx := range e.indexes {
			if idx.multi {
				continue
			}
			for _, k := range idx.keyGen(&oldEntity) {
				held[k] = true
			}
		}
		if err := e.ensureUniqueIndexes(txn, entity, id, held); err != nil {
			return err
		}

		if err := txn.Set([]byte(key), data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return e.putIndexEntries(txn, entity, id)
	})
}

// Delete deletes an entity by ID. Deleting a missing entity is not an
// error.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := e.prefix + id

	return e.store.db.Update(func(txn *badger.Txn) error {
		var entity T
		err := readInto(txn, key, &entity)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := e.dropIndexEntries(txn, &entity, id); err != nil {
			return err
		}
		if err := txn.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		return nil
	})
}

// List returns an iterator over all entities.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(e.prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(e.prefix)); it.ValidForPrefix(opts.Prefix); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Index entries share the prefix; skip them.
				if strings.HasPrefix(string(it.Item().Key()[len(e.prefix):]), "idx:") {
					continue
				}

				var entity T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				})
				if err != nil {
					yield(nil, err)
					return err
				}
				if !yield(&entity, nil) {
					return nil
				}
			}
			return nil
		})
	}
}
