package storage

import (
	"context"

	"github.com/iudanet/gymsync/internal/models"
)

//go:generate go tool moq -out records_mock.go . SyncStorage

// SyncStorage определяет интерфейс авторитетного хранилища записей.
// Схема и движок хранения скрыты за этим интерфейсом.
type SyncStorage interface {
	// ListSince возвращает записи вида kind со штампом строго после cur,
	// упорядоченные по (updated_at, updated_seq) по возрастанию,
	// не более limit штук. Детерминирован при неизменных данных.
	ListSince(ctx context.Context, kind models.EntityKind, cur models.Cursor, limit int) ([]*models.Record, error)

	// GetRecord возвращает запись по виду и GUID, включая tombstone.
	// Возвращает ErrRecordNotFound, если записи нет.
	GetRecord(ctx context.Context, kind models.EntityKind, guid string) (*models.Record, error)

	// Batch выполняет fn внутри одной транзакции.
	// Откат транзакции отменяет все изменения батча целиком.
	Batch(ctx context.Context, fn func(tx BatchTx) error) error
}

// BatchTx операции, доступные внутри одной push-транзакции.
type BatchTx interface {
	// Get возвращает запись по виду и GUID или ErrRecordNotFound.
	Get(kind models.EntityKind, guid string) (*models.Record, error)

	// Upsert создает или полностью заменяет запись.
	Upsert(rec *models.Record) error

	// NextSeq выдает следующее значение глобального монотонного счетчика.
	// Счетчик общий для всех видов сущностей: никакие две записи
	// не получают одинаковую пару (timestamp, sequence).
	NextSeq() (int64, error)
}
