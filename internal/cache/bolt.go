package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var entriesBucket = []byte("entries")

// BoltStore persists entries in a local bbolt file, for deployments that run
// without Redis. bbolt has no native expiry, so the TTL is stored next to the
// payload and checked on read.
type BoltStore struct {
	db *bolt.DB
}

type boltEnvelope struct {
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(entriesBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(entriesBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		var env boltEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decoding envelope: %w", err)
		}
		if !env.ExpiresAt.IsZero() && time.Now().After(env.ExpiresAt) {
			return nil // expired, report as missing
		}
		data = append([]byte(nil), env.Payload...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, found, nil
}

func (s *BoltStore) Put(_ context.Context, key string, data []byte, ttl time.Duration) error {
	env := boltEnvelope{Payload: data}
	if ttl > 0 {
		env.ExpiresAt = time.Now().Add(ttl)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).Put([]byte(key), raw)
	})
}
