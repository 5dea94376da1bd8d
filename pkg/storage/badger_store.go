package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/doc-outline/pkg/log"
	"github.com/Sriram-PR/doc-outline/pkg/models"
	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

const (
	docKeyPrefix = "doc:"       // Prefix for source keys in DB
	outlineDBDir = "outline_db" // Subdirectory within stateDir for Badger files
)

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached document count
}

// NewBadgerStore opens (or creates) the outline database under stateDir
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, outlineDBDir)
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}
	return openBadger(badger.DefaultOptions(dbPath), logger)
}

// NewInMemoryStore opens a BadgerStore that keeps nothing on disk
func NewInMemoryStore(logger *logrus.Entry) (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true), logger)
}

func openBadger(opts badger.Options, logger *logrus.Entry) (*BadgerStore, error) {
	opts = opts.
		WithLogger(log.NewBadgerLogrusAdapter(logger)).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %q: %w", utils.ErrDatabase, opts.Dir, err)
	}
	store := &BadgerStore{db: db, log: logger}

	count, err := store.countKeys()
	if err != nil {
		logger.Warnf("Failed to count existing documents: %v", err)
	}
	store.keyCount.Store(int64(count))
	logger.WithField("documents", count).Debug("Outline database opened")
	return store, nil
}

// countKeys performs a full key scan; used once at open.
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(docKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update, retrying badger.ErrConflict from overlapping transactions.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// SaveDocument implements DocumentStore
func (s *BadgerStore) SaveDocument(entry *models.DocumentEntry) error {
	if entry == nil || entry.SourceKey == "" {
		return fmt.Errorf("%w: document entry has no source key", utils.ErrDatabase)
	}
	if !entry.Status.IsValid() {
		return fmt.Errorf("%w: refusing to store status '%s' for '%s'", utils.ErrDatabase, entry.Status, entry.SourceKey)
	}
	key := []byte(docKeyPrefix + entry.SourceKey)

	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: JSON encoding entry for '%s': %w", utils.ErrParsing, entry.SourceKey, err)
	}

	isNew := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		isNew = false
		_, errGet := txn.Get(key)
		switch {
		case errors.Is(errGet, badger.ErrKeyNotFound):
			isNew = true
		case errGet != nil:
			return errGet
		}
		return txn.SetEntry(badger.NewEntry(key, val))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in SaveDocument: %v", err)
		return fmt.Errorf("%w: saving '%s': %w", utils.ErrDatabase, entry.SourceKey, err)
	}
	if isNew {
		s.keyCount.Add(1)
	}

	s.log.WithFields(logrus.Fields{"source": entry.SourceKey, "status": entry.Status}).Debug("Stored document entry")
	return nil
}

// GetDocument implements DocumentStore
func (s *BadgerStore) GetDocument(sourceKey string) (models.DocumentStatus, *models.DocumentEntry, error) {
	status := models.DocumentStatusNotFound
	var entry *models.DocumentEntry
	key := []byte(docKeyPrefix + sourceKey)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			var decoded models.DocumentEntry
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				s.log.Warnf("Failed to unmarshal DocumentEntry for key '%s': %v. Treating as 'not_found'.", string(key), errJSON)
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB View error in GetDocument for key '%s': %v", string(key), errView)
		return models.DocumentStatusDBError, nil, errView
	}
	return status, entry, nil
}

// GetContentHash implements DocumentStore. A failed refresh keeps the hash of
// the last good fetch, so it is returned regardless of the current status.
func (s *BadgerStore) GetContentHash(sourceKey string) (string, bool, error) {
	_, entry, err := s.GetDocument(sourceKey)
	if err != nil {
		return "", false, err
	}
	if entry != nil && entry.ContentHash != "" {
		return entry.ContentHash, true, nil
	}
	return "", false, nil
}

// ListDocuments implements DocumentStore
func (s *BadgerStore) ListDocuments(ctx context.Context) ([]models.DocumentEntry, error) {
	entries := make([]models.DocumentEntry, 0, s.Count())

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(docKeyPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			errValue := item.Value(func(val []byte) error {
				var entry models.DocumentEntry
				if errJSON := json.Unmarshal(val, &entry); errJSON != nil {
					s.log.Warnf("Skipping undecodable entry '%s': %v", string(item.Key()), errJSON)
					return nil
				}
				entries = append(entries, entry)
				return nil
			})
			if errValue != nil {
				return errValue
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: listing documents: %w", utils.ErrDatabase, err)
	}
	return entries, nil
}

// DeleteDocument implements DocumentStore
func (s *BadgerStore) DeleteDocument(sourceKey string) error {
	key := []byte(docKeyPrefix + sourceKey)
	existed := false

	err := s.dbUpdate(func(txn *badger.Txn) error {
		existed = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return errGet
		}
		existed = true
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("%w: deleting '%s': %w", utils.ErrDatabase, sourceKey, err)
	}
	if existed {
		s.keyCount.Add(-1)
		s.log.WithField("source", sourceKey).Info("Deleted stored outline")
	}
	return nil
}

// Count implements DocumentStore
func (s *BadgerStore) Count() int {
	return int(s.keyCount.Load())
}

// RunGC runs BadgerDB's value log garbage collection every interval until ctx is done
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db.IsClosed() {
				return
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB GC: %v", ctx.Err())
			return
		}
	}
}

// Close implements StoreAdmin
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing database: %w", utils.ErrDatabase, err)
	}
	return nil
}
