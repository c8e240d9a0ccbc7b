// Package store persists whole JSON documents under fixed keys. Callers
// always read and replace a complete document; there are no partial updates.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key has never been written.
	ErrNotFound = errors.New("document not found")
	// ErrLocked is returned when another process holds the database.
	ErrLocked = errors.New("database is locked")
)

const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverDir    = "dir"
)

// Backend is a keyed document store.
type Backend interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	// PutAll writes every value together. A nil value deletes the key.
	PutAll(values map[string][]byte) error
	Delete(key string) error
	Close() error
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*Bolt)(nil)
	_ Backend = (*Dir)(nil)
)

// Open returns the backend registered under driver.
func Open(driver, path string) (Backend, error) {
	switch driver {
	case "", DriverSQLite:
		return New(path)
	case DriverBolt:
		return NewBolt(path)
	case DriverDir:
		return NewDir(path)
	default:
		return nil, fmt.Errorf("unknown backend %q", driver)
	}
}

// DecodeError reports a stored document that exists but does not parse.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Load reads key and decodes it into a T. The error is ErrNotFound (wrapped)
// when the key is absent, a *DecodeError when the payload is corrupt, or the
// backend's read error.
func Load[T any](b Backend, key string) (T, error) {
	var v T
	data, err := b.Get(key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &DecodeError{Key: key, Err: err}
	}
	return v, nil
}

// Encode marshals v for storage.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return data, nil
}
