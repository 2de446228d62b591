// Package store persists registry state in a bbolt database: one bucket maps
// extension names to their metadata record and another maps names to their
// settings overrides. Every write is a single bbolt transaction, so a crash
// leaves either the old or the new value on disk.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/webext-labs/webext/internal/manifest"
	bbolt "go.etcd.io/bbolt"
)

const fileMode os.FileMode = 0o600

var (
	bucketExtensions = []byte("extensions")
	bucketSettings   = []byte("settings")
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("store is closed")
	// ErrLocked is returned by Open when another process holds the database.
	ErrLocked = errors.New("registry is locked by another process")
)

// Record is the persisted form of a registry entry.
type Record struct {
	Name        string               `json:"name"`
	Dir         string               `json:"dir"`
	State       string               `json:"state"`
	Enabled     bool                 `json:"enabled"`
	InstallDate time.Time            `json:"install_date"`
	UpdateDate  time.Time            `json:"update_date"`
	Error       string               `json:"error,omitempty"`
	Descriptor  *manifest.Descriptor `json:"descriptor,omitempty"`
}

// Store is a bbolt-backed record and settings store.
type Store struct {
	db     *bbolt.DB
	closed atomic.Bool
}

// Open opens or creates the database at path, waiting at most timeout for
// the file lock.
func Open(path string, timeout time.Duration) (*Store, error) {
	db, err := bbolt.Open(path, fileMode, &bbolt.Options{Timeout: timeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("opening state file %s: %w", path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketExtensions, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing buckets in %s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Records returns every record sorted by name.
func (s *Store) Records() ([]Record, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	var out []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketExtensions).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding record %s: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PutRecord creates or replaces the record for rec.Name.
func (s *Store) PutRecord(rec Record) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.Name, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketExtensions).Put([]byte(rec.Name), data)
	})
}

// Overrides returns the stored settings overrides for name. A missing entry
// yields an empty map.
func (s *Store) Overrides(name string) (map[string]any, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	out := map[string]any{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSettings).Get([]byte(name))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("reading settings for %s: %w", name, err)
	}
	return out, nil
}

// PutOverrides replaces the stored overrides for name. An empty map deletes
// the entry.
func (s *Store) PutOverrides(name string, overrides map[string]any) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	if len(overrides) == 0 {
		return s.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(bucketSettings).Delete([]byte(name))
		})
	}

	data, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("encoding settings for %s: %w", name, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Put([]byte(name), data)
	})
}

// Delete removes the record and the overrides of name in one transaction.
func (s *Store) Delete(name string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketExtensions).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(bucketSettings).Delete([]byte(name))
	})
}
