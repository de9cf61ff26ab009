package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

// outboxKey строит ключ элемента очереди.
// Ключи начинаются с нулепадированного UnixNano, поэтому обход bucket'а
// в порядке ключей дает порядок времени возникновения.
func outboxKey(entry *models.OutboxEntry) []byte {
	return []byte(fmt.Sprintf("%020d_%s", entry.OccurredAt.UnixNano(), entry.ID))
}

// Enqueue добавляет элемент в очередь исходящих мутаций.
func (s *Storage) Enqueue(ctx context.Context, entry *models.OutboxEntry) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox entry: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).Put(outboxKey(entry), data)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// HasPendingDuplicate проверяет, есть ли неотправленный элемент
// с тем же (kind, guid, change) и тем же отпечатком.
func (s *Storage) HasPendingDuplicate(ctx context.Context, kind models.EntityKind, guid string, change models.ChangeType, fingerprint string) (bool, error) {
	if s.db == nil {
		return false, storage.ErrStorageClosed
	}

	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(k, v []byte) error {
			var entry models.OutboxEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal outbox entry: %w", err)
			}
			if !entry.Sent &&
				entry.Kind == kind &&
				entry.EntityGUID == guid &&
				entry.Change == change &&
				entry.Fingerprint == fingerprint {
				found = true
			}
			return nil
		})
	})
	if err != nil {
		return false, err
	}

	return found, nil
}

// ListUnsent возвращает до limit неотправленных элементов
// в порядке времени возникновения.
func (s *Storage) ListUnsent(ctx context.Context, limit int) ([]*models.OutboxEntry, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entries []*models.OutboxEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketOutbox).Cursor()
		for k, v := c.First(); k != nil && len(entries) < limit; k, v = c.Next() {
			entry := &models.OutboxEntry{}
			if err := json.Unmarshal(v, entry); err != nil {
				return fmt.Errorf("failed to unmarshal outbox entry: %w", err)
			}
			if entry.Sent {
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// MarkSent помечает элементы отправленными.
func (s *Storage) MarkSent(ctx context.Context, ids []string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if len(ids) == 0 {
		return nil
	}

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry models.OutboxEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal outbox entry: %w", err)
			}
			if _, ok := idSet[entry.ID]; !ok {
				continue
			}

			entry.Sent = true
			data, err := json.Marshal(&entry)
			if err != nil {
				return fmt.Errorf("failed to marshal outbox entry: %w", err)
			}
			if err := bucket.Put(k, data); err != nil {
				return fmt.Errorf("failed to update outbox entry: %w", err)
			}
		}
		return nil
	})
}

// Delete удаляет элементы очереди по идентификаторам.
// Используется для структурно невалидных элементов при drain.
func (s *Storage) Delete(ctx context.Context, ids []string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if len(ids) == 0 {
		return nil
	}

	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry models.OutboxEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal outbox entry: %w", err)
			}
			if _, ok := idSet[entry.ID]; !ok {
				continue
			}
			if err := c.Delete(); err != nil {
				return fmt.Errorf("failed to delete outbox entry: %w", err)
			}
		}
		return nil
	})
}

// CountUnsent возвращает количество ожидающих отправки элементов.
func (s *Storage) CountUnsent(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(k, v []byte) error {
			var entry models.OutboxEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal outbox entry: %w", err)
			}
			if !entry.Sent {
				count++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// PruneSent удаляет отправленные элементы старше olderThan.
func (s *Storage) PruneSent(ctx context.Context, olderThan time.Time) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	pruned := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry models.OutboxEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal outbox entry: %w", err)
			}
			if !entry.Sent || !entry.OccurredAt.Before(olderThan) {
				continue
			}
			if err := c.Delete(); err != nil {
				return fmt.Errorf("failed to prune outbox entry: %w", err)
			}
			pruned++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return pruned, nil
}
