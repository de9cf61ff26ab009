package models

import (
	"fmt"
	"time"
)

// OutboxEntry одна ожидающая отправки локальная мутация.
// Создается в момент коммита локального изменения, читается диспетчером,
// помечается отправленной только после терминального ответа сервера.
type OutboxEntry struct {
	OccurredAt  time.Time  `json:"occurred_at"` // OccurredAt когда произошла мутация
	ID          string     `json:"id"`          // ID уникальный идентификатор элемента очереди (UUID)
	Kind        EntityKind `json:"kind"`        // Kind вид сущности
	EntityGUID  string     `json:"entity_guid"` // EntityGUID идентификатор измененной записи
	Change      ChangeType `json:"change"`      // Change классификация мутации
	Fingerprint string     `json:"fingerprint"` // Fingerprint контентный отпечаток нормализованного payload
	Payload     []byte     `json:"payload"`     // Payload нормализованный JSON, передаваемый в push-запросе
	Sent        bool       `json:"sent"`        // Sent подтверждена ли отправка сервером
}

// Validate проверяет структурную корректность элемента очереди.
// Элементы без обязательного ключа отбрасываются, а не ставятся в очередь.
func (e *OutboxEntry) Validate() error {
	if e.EntityGUID == "" {
		return fmt.Errorf("outbox entry %s: missing entity guid", e.ID)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("outbox entry %s: unsupported entity kind %q", e.ID, e.Kind)
	}
	if !e.Change.Valid() {
		return fmt.Errorf("outbox entry %s: unknown change type %q", e.ID, e.Change)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("outbox entry %s: empty payload", e.ID)
	}
	return nil
}
