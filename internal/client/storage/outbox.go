package storage

import (
	"context"
	"time"

	"github.com/iudanet/gymsync/internal/models"
)

// OutboxStorage определяет интерфейс durable-очереди исходящих мутаций.
type OutboxStorage interface {
	// Enqueue добавляет элемент в очередь.
	Enqueue(ctx context.Context, entry *models.OutboxEntry) error

	// HasPendingDuplicate проверяет, есть ли неотправленный элемент
	// с теми же (kind, guid, change) и тем же отпечатком payload.
	HasPendingDuplicate(ctx context.Context, kind models.EntityKind, guid string, change models.ChangeType, fingerprint string) (bool, error)

	// ListUnsent возвращает до limit неотправленных элементов
	// в порядке времени возникновения.
	ListUnsent(ctx context.Context, limit int) ([]*models.OutboxEntry, error)

	// MarkSent помечает элементы отправленными.
	MarkSent(ctx context.Context, ids []string) error

	// Delete удаляет элементы (структурно невалидные при drain).
	Delete(ctx context.Context, ids []string) error

	// CountUnsent возвращает количество ожидающих элементов.
	CountUnsent(ctx context.Context) (int, error)

	// PruneSent удаляет отправленные элементы старше olderThan.
	// Возвращает количество удаленных.
	PruneSent(ctx context.Context, olderThan time.Time) (int, error)
}

// StateStorage определяет интерфейс персистентного состояния синхронизации.
type StateStorage interface {
	// GetSyncState возвращает состояние партиции или ErrStateNotFound.
	GetSyncState(ctx context.Context, partition string) (*models.SyncState, error)

	// SaveSyncState сохраняет состояние партиции целиком.
	SaveSyncState(ctx context.Context, state *models.SyncState) error
}
