package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"
)

const boltBucketDocuments = "documents" // key: document key -> JSON document

// Bolt is the bbolt backend.
type Bolt struct {
	storage *bbolt.DB
}

// NewBolt opens (or creates) a Bolt database at path.
func NewBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	instance, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if errors.Is(err, bberrors.ErrTimeout) {
		return nil, fmt.Errorf("open bolt %s: %w", path, ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	if err := instance.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketDocuments))
		return err
	}); err != nil {
		_ = instance.Close()

		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Bolt{storage: instance}, nil
}

func (b *Bolt) Close() error {
	return b.storage.Close()
}

func (b *Bolt) Get(key string) ([]byte, error) {
	var out []byte

	err := b.storage.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(boltBucketDocuments)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		out = append([]byte(nil), v...)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}

	return out, nil
}

func (b *Bolt) Put(key string, value []byte) error {
	return b.PutAll(map[string][]byte{key: value})
}

func (b *Bolt) PutAll(values map[string][]byte) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketDocuments))
		for _, key := range sortedKeys(values) {
			value := values[key]
			if value == nil {
				if err := bucket.Delete([]byte(key)); err != nil {
					return fmt.Errorf("delete %q: %w", key, err)
				}
				continue
			}
			if err := bucket.Put([]byte(key), value); err != nil {
				return fmt.Errorf("put %q: %w", key, err)
			}
		}

		return nil
	})
}

func (b *Bolt) Delete(key string) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketDocuments)).Delete([]byte(key))
	})
}
