// Package store wraps Pebble with the small keyed-JSON-record surface the
// outcome and credential stores share.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// DB is a Pebble instance holding JSON records keyed by string.
type DB struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) a pebble DB at the given path.
func Open(path string) (*DB, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	return &DB{db: db, path: path}, nil
}

// Close closes the underlying DB.
func (d *DB) Close() error {
	return d.db.Close()
}

// PutJSON stores v marshalled as JSON under key.
func (d *DB) PutJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return d.db.Set([]byte(key), data, pebble.Sync)
}

// GetJSON unmarshals the record under key into v. Returns false with a nil
// error when the key does not exist.
func (d *DB) GetJSON(key string, v any) (bool, error) {
	data, closer, err := d.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	defer closer.Close()

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return true, nil
}

// Delete removes the key.
func (d *DB) Delete(key string) error {
	return d.db.Delete([]byte(key), pebble.Sync)
}

// ForEach calls fn for every record. The value bytes are owned by Pebble and
// must not be retained past the callback.
func (d *DB) ForEach(fn func(key string, value []byte) error) error {
	iter, err := d.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(string(iter.Key()), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// CheckHealth verifies the database is accessible.
func (d *DB) CheckHealth() error {
	_, closer, err := d.db.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("store health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}
