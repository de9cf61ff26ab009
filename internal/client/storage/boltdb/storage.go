package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

var (
	// BoltDB bucket names
	bucketOutbox    = []byte("outbox")
	bucketSyncState = []byte("syncstate")
)

// recordBucket возвращает имя bucket'а записей для вида сущности
func recordBucket(kind models.EntityKind) []byte {
	return []byte("records_" + string(kind))
}

// relationBucket возвращает имя bucket'а для вида связи
func relationBucket(rel models.RelationKind) []byte {
	return []byte("rel_" + string(rel))
}

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db   *bbolt.DB
	hook storage.ChangeHook
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetChangeHook регистрирует хук захвата локальных мутаций.
// Хук вызывается синхронно после коммита локальной записи.
func (s *Storage) SetChangeHook(hook storage.ChangeHook) {
	s.hook = hook
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		// Bucket записей на каждый вид сущности
		for _, kind := range models.AllKinds() {
			if _, err := tx.CreateBucketIfNotExists(recordBucket(kind)); err != nil {
				return fmt.Errorf("failed to create records bucket for %s: %w", kind, err)
			}
		}

		// Bucket на каждый вид связи (join-таблица по двум идентификаторам)
		for _, rel := range models.AllRelationKinds() {
			if _, err := tx.CreateBucketIfNotExists(relationBucket(rel)); err != nil {
				return fmt.Errorf("failed to create relations bucket for %s: %w", rel, err)
			}
		}

		if _, err := tx.CreateBucketIfNotExists(bucketOutbox); err != nil {
			return fmt.Errorf("failed to create outbox bucket: %w", err)
		}

		if _, err := tx.CreateBucketIfNotExists(bucketSyncState); err != nil {
			return fmt.Errorf("failed to create syncstate bucket: %w", err)
		}

		return nil
	})
}
