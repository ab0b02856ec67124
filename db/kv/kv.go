// Package kv is the block-storage collaborator the fork-choice and
// block-processor pipeline read and write through: root-keyed blocks,
// a slot index and a parent-root index for child enumeration, and the
// chain's head/justified/finalized pointers, backed by bbolt with a
// ristretto read-through cache for hot blocks.
package kv

import (
	"os"
	"path"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const (
	databaseFileName = "beaconchain.db"
	// blockCacheSize is the block cache's MaxCost; each block is cached at
	// cost 1, so this bounds it at about two million blocks.
	blockCacheSize = int64(1 << 21)
)

// Store wraps a bbolt database with a read-through cache for
// frequently-accessed blocks.
type Store struct {
	db           *bbolt.DB
	databasePath string
	blockCache   *ristretto.Cache
}

// NewKVStore opens (creating if absent) a bbolt-backed store at dirPath
// and ensures every bucket this package uses exists.
func NewKVStore(dirPath string) (*Store, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, errors.Wrap(err, "could not create database directory")
	}
	datafile := path.Join(dirPath, databaseFileName)
	db, err := bbolt.Open(datafile, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bbolt.ErrTimeout {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, errors.Wrap(err, "could not open bbolt database")
	}

	blockCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     blockCacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize block cache")
	}

	store := &Store{db: db, databasePath: dirPath, blockCache: blockCache}

	if err := store.db.Update(func(tx *bbolt.Tx) error {
		return createBuckets(tx,
			blocksBucket,
			blockSlotIndicesBucket,
			blockParentRootIndicesBucket,
			finalizedBlockRootsIndexBucket,
			chainMetadataBucket,
		)
	}); err != nil {
		return nil, errors.Wrap(err, "could not create buckets")
	}
	return store, nil
}

func createBuckets(tx *bbolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ClearDB removes the database file from disk. Intended for test
// teardown only.
func (s *Store) ClearDB() error {
	if _, err := os.Stat(s.databasePath); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(path.Join(s.databasePath, databaseFileName))
}

// DatabasePath returns the directory this store writes to.
func (s *Store) DatabasePath() string {
	return s.databasePath
}
