package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

// relationSeparator разделитель участников связи в ключе join-bucket'а.
// GUID не содержит '|', поэтому ключ однозначен.
const relationSeparator = "|"

// entityTx реализует storage.EntityTx поверх *bbolt.Tx.
type entityTx struct {
	tx *bbolt.Tx
}

// GetRecord возвращает запись или storage.ErrRecordNotFound.
func (t *entityTx) GetRecord(kind models.EntityKind, guid string) (*models.Record, error) {
	bucket := t.tx.Bucket(recordBucket(kind))
	if bucket == nil {
		return nil, storage.ErrRecordNotFound
	}

	data := bucket.Get([]byte(guid))
	if data == nil {
		return nil, storage.ErrRecordNotFound
	}

	rec := &models.Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return rec, nil
}

// HasRecord проверяет наличие записи без десериализации.
func (t *entityTx) HasRecord(kind models.EntityKind, guid string) (bool, error) {
	bucket := t.tx.Bucket(recordBucket(kind))
	if bucket == nil {
		return false, nil
	}
	return bucket.Get([]byte(guid)) != nil, nil
}

// PutRecord создает или заменяет запись.
func (t *entityTx) PutRecord(rec *models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	bucket := t.tx.Bucket(recordBucket(rec.Kind))
	if bucket == nil {
		return fmt.Errorf("records bucket for %s does not exist", rec.Kind)
	}

	if err := bucket.Put([]byte(rec.GUID), data); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

// Relations возвращает все GUID, связанные с from данным видом связи.
// Ключи join-bucket'а имеют вид "from|to", выборка идет префиксным сканом.
func (t *entityTx) Relations(rel models.RelationKind, from string) ([]string, error) {
	bucket := t.tx.Bucket(relationBucket(rel))
	if bucket == nil {
		return nil, nil
	}

	prefix := []byte(from + relationSeparator)
	var out []string

	c := bucket.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		out = append(out, string(k[len(prefix):]))
	}

	return out, nil
}

// SetRelation добавляет связь from -> to (идемпотентно).
func (t *entityTx) SetRelation(rel models.RelationKind, from, to string) error {
	bucket := t.tx.Bucket(relationBucket(rel))
	if bucket == nil {
		return fmt.Errorf("relations bucket for %s does not exist", rel)
	}
	return bucket.Put([]byte(from+relationSeparator+to), []byte{1})
}

// DeleteRelation удаляет связь from -> to (идемпотентно).
func (t *entityTx) DeleteRelation(rel models.RelationKind, from, to string) error {
	bucket := t.tx.Bucket(relationBucket(rel))
	if bucket == nil {
		return nil
	}
	return bucket.Delete([]byte(from + relationSeparator + to))
}

// ApplyPage выполняет fn в одной write-транзакции.
// Страница применяется целиком или откатывается целиком; при отмене
// контекста посреди страницы частично примененных данных не остается.
func (s *Storage) ApplyPage(ctx context.Context, fn func(tx storage.EntityTx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(&entityTx{tx: tx})
	})
}

// View выполняет fn в read-транзакции.
func (s *Storage) View(ctx context.Context, fn func(tx storage.EntityTx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(&entityTx{tx: tx})
	})
}

// GetRecord возвращает локальную запись по виду и GUID.
func (s *Storage) GetRecord(ctx context.Context, kind models.EntityKind, guid string) (*models.Record, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var rec *models.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		var terr error
		rec, terr = (&entityTx{tx: tx}).GetRecord(kind, guid)
		return terr
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Relations возвращает существующий набор связей from -> to.
func (s *Storage) Relations(ctx context.Context, rel models.RelationKind, from string) ([]string, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		var terr error
		out, terr = (&entityTx{tx: tx}).Relations(rel, from)
		return terr
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// SaveLocal сохраняет локальную мутацию и вызывает хук захвата.
// UpdatedAt поднимается до локального времени: при push именно эта метка
// участвует в LWW-сравнении против серверной копии.
func (s *Storage) SaveLocal(ctx context.Context, rec *models.Record, rels map[models.RelationKind][]string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	rec.UpdatedAt = time.Now().UTC()
	change := models.ChangeUpdate

	err := s.db.Update(func(btx *bbolt.Tx) error {
		tx := &entityTx{tx: btx}

		exists, err := tx.HasRecord(rec.Kind, rec.GUID)
		if err != nil {
			return err
		}
		if !exists {
			change = models.ChangeInsert
		}

		if err := tx.PutRecord(rec); err != nil {
			return err
		}

		// Локальная запись тоже сверяет наборы связей set-diff'ом
		for rel, desired := range rels {
			if _, _, err := storage.ReconcileRelations(tx, rel, rec.GUID, desired); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	s.fireHook(ctx, storage.Change{Record: rec, Relations: rels, Change: change})

	return nil
}

// DeleteLocal помечает локальную запись удаленной (soft delete) и вызывает хук.
func (s *Storage) DeleteLocal(ctx context.Context, kind models.EntityKind, guid string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	var rec *models.Record

	err := s.db.Update(func(btx *bbolt.Tx) error {
		tx := &entityTx{tx: btx}

		existing, err := tx.GetRecord(kind, guid)
		if err != nil {
			return err
		}

		existing.Deleted = true
		existing.UpdatedAt = time.Now().UTC()
		rec = existing

		return tx.PutRecord(existing)
	})
	if err != nil {
		return err
	}

	s.fireHook(ctx, storage.Change{Record: rec, Change: models.ChangeDelete})

	return nil
}

// fireHook вызывает зарегистрированный хук изменений, если он есть.
func (s *Storage) fireHook(ctx context.Context, ch storage.Change) {
	if s.hook != nil {
		s.hook(ctx, ch)
	}
}
