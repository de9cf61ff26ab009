package storage

import (
	"context"

	"github.com/iudanet/gymsync/internal/models"
)

// Change описывает одну закоммиченную локальную мутацию.
// Передается в хук захвата сразу после коммита записи.
type Change struct {
	Record    *models.Record
	Relations map[models.RelationKind][]string
	Change    models.ChangeType
}

// ChangeHook вызывается путем локальной записи после каждого коммита
// локальной мутации. Это точка подключения outbox-захвата: обычная
// функция, которую зовет хранилище, без framework-перехвата.
type ChangeHook func(ctx context.Context, ch Change)

// EntityStorage определяет интерфейс локального хранилища записей и связей.
type EntityStorage interface {
	// ApplyPage выполняет fn в одной write-транзакции.
	// Страница pull-данных применяется целиком или не применяется вовсе;
	// хук изменений НЕ вызывается (pull не порождает outbox-записей).
	ApplyPage(ctx context.Context, fn func(tx EntityTx) error) error

	// View выполняет fn в read-транзакции.
	View(ctx context.Context, fn func(tx EntityTx) error) error

	// GetRecord возвращает локальную запись или ErrRecordNotFound.
	GetRecord(ctx context.Context, kind models.EntityKind, guid string) (*models.Record, error)

	// Relations возвращает существующий набор связей from -> to.
	Relations(ctx context.Context, rel models.RelationKind, from string) ([]string, error)

	// SaveLocal сохраняет локальную мутацию: upsert записи, сверка
	// наборов связей, затем вызов хука изменений. UpdatedAt записи
	// поднимается до локального времени, чтобы push выиграл LWW.
	SaveLocal(ctx context.Context, rec *models.Record, rels map[models.RelationKind][]string) error

	// DeleteLocal помечает локальную запись удаленной и вызывает хук.
	DeleteLocal(ctx context.Context, kind models.EntityKind, guid string) error

	// SetChangeHook регистрирует хук захвата локальных мутаций.
	SetChangeHook(hook ChangeHook)
}

// EntityTx операции над записями и связями внутри одной транзакции.
type EntityTx interface {
	// GetRecord возвращает запись или ErrRecordNotFound.
	GetRecord(kind models.EntityKind, guid string) (*models.Record, error)

	// HasRecord проверяет наличие записи без десериализации.
	HasRecord(kind models.EntityKind, guid string) (bool, error)

	// PutRecord создает или заменяет запись.
	PutRecord(rec *models.Record) error

	// Relations возвращает существующий набор связей from -> to.
	Relations(rel models.RelationKind, from string) ([]string, error)

	// SetRelation добавляет связь (идемпотентно).
	SetRelation(rel models.RelationKind, from, to string) error

	// DeleteRelation удаляет связь (идемпотентно).
	DeleteRelation(rel models.RelationKind, from, to string) error
}
