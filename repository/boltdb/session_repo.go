package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/portal/domain"
	"github.com/fastygo/portal/repository"
)

var (
	sessionsBucket  = []byte("sessions")
	redirectsBucket = []byte("redirects")
)

// SessionRepository keeps durable session records in a local Bolt file. It is meant
// for single-node deployments where Redis is not available.
type SessionRepository struct {
	db *bolt.DB
}

var _ repository.SessionRepository = (*SessionRepository)(nil)

// Open initializes the Bolt file and its top-level buckets.
func Open(path string) (*SessionRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(sessionsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(redirectsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &SessionRepository{db: db}, nil
}

func (r *SessionRepository) Load(_ context.Context, clientID string) (domain.Record, error) {
	record := domain.Record{}
	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket).Bucket([]byte(clientID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			record[string(k)] = string(v)
			return nil
		})
	})
	return record, err
}

func (r *SessionRepository) Replace(_ context.Context, clientID string, record domain.Record) error {
	if clientID == "" || !record.Complete() {
		return domain.ErrInvalidPayload
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(sessionsBucket)
		if root.Bucket([]byte(clientID)) != nil {
			if err := root.DeleteBucket([]byte(clientID)); err != nil {
				return err
			}
		}
		b, err := root.CreateBucket([]byte(clientID))
		if err != nil {
			return err
		}
		for k, v := range record {
			if err := b.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SessionRepository) Clear(_ context.Context, clientID string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(sessionsBucket)
		if root.Bucket([]byte(clientID)) == nil {
			return nil
		}
		return root.DeleteBucket([]byte(clientID))
	})
}

func (r *SessionRepository) SetFlag(_ context.Context, clientID, key, value string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sessionsBucket).Bucket([]byte(clientID))
		if b == nil {
			return domain.ErrNoSession
		}
		return b.Put([]byte(key), []byte(value))
	})
}

func (r *SessionRepository) SetRedirect(_ context.Context, clientID, target string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(redirectsBucket).Put([]byte(clientID), []byte(target))
	})
}

func (r *SessionRepository) TakeRedirect(_ context.Context, clientID string) (string, error) {
	var target string
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(redirectsBucket)
		if v := b.Get([]byte(clientID)); v != nil {
			target = string(v)
		}
		return b.Delete([]byte(clientID))
	})
	return target, err
}

// Close closes the Bolt database.
func (r *SessionRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (r *SessionRepository) Stats() bolt.Stats {
	if r == nil || r.db == nil {
		return bolt.Stats{}
	}
	return r.db.Stats()
}
