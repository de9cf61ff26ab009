package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

// GetSyncState возвращает состояние синхронизации партиции.
// Возвращает storage.ErrStateNotFound, если состояния еще нет.
func (s *Storage) GetSyncState(ctx context.Context, partition string) (*models.SyncState, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var state *models.SyncState
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSyncState).Get([]byte(partition))
		if data == nil {
			return storage.ErrStateNotFound
		}

		state = &models.SyncState{}
		if err := json.Unmarshal(data, state); err != nil {
			return fmt.Errorf("failed to unmarshal sync state: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// SaveSyncState сохраняет состояние синхронизации партиции целиком.
func (s *Storage) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSyncState).Put([]byte(state.Partition), data)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
