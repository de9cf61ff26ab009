package models

import (
	"encoding/json"
	"time"
)

// Record представляет одну реплицируемую запись в общем конверте.
// Scalar-поля конкретного вида и списки GUID связей лежат в Payload;
// сервер хранит конверт как есть, типизированный разбор Payload
// выполняют только клиентские процессоры.
type Record struct {
	UpdatedAt  time.Time       `json:"updated_at"`  // UpdatedAt серверная метка времени последнего изменения (UTC)
	GUID       string          `json:"guid"`        // GUID уникальный идентификатор записи
	Kind       EntityKind      `json:"kind"`        // Kind вид сущности
	Authority  Authority       `json:"authority"`   // Authority какая сторона владеет записью
	Payload    json.RawMessage `json:"payload"`     // Payload kind-специфичные поля в JSON
	UpdatedSeq int64           `json:"updated_seq"` // UpdatedSeq глобально монотонный порядковый номер
	Deleted    bool            `json:"deleted"`     // Deleted флаг soft delete
}

// IsNewerThan сравнивает две записи по правилу LWW (Last-Write-Wins):
// 1. Сначала сравнивается UpdatedAt (больший выигрывает)
// 2. При равных UpdatedAt сравнивается UpdatedSeq
// Возвращает true, если текущая запись строго новее other.
func (r *Record) IsNewerThan(other *Record) bool {
	if r.UpdatedAt.After(other.UpdatedAt) {
		return true
	}
	if r.UpdatedAt.Before(other.UpdatedAt) {
		return false
	}
	return r.UpdatedSeq > other.UpdatedSeq
}

// Stamp returns the record's (timestamp, sequence) pair as a cursor position.
func (r *Record) Stamp() Cursor {
	return Cursor{Ts: r.UpdatedAt.UTC(), Seq: r.UpdatedSeq}
}

// Clone создает глубокую копию записи.
func (r *Record) Clone() *Record {
	payload := make(json.RawMessage, len(r.Payload))
	copy(payload, r.Payload)

	return &Record{
		GUID:       r.GUID,
		Kind:       r.Kind,
		UpdatedAt:  r.UpdatedAt,
		UpdatedSeq: r.UpdatedSeq,
		Deleted:    r.Deleted,
		Authority:  r.Authority,
		Payload:    payload,
	}
}

// DescriptorPayload свободный текстовый дескриптор, на который ссылаются
// остальные виды записей.
type DescriptorPayload struct {
	Text string `json:"text"`
}

// MusclePayload мышца с набором антагонистов.
type MusclePayload struct {
	Name           string   `json:"name"`
	DescriptorGUID string   `json:"descriptor_guid,omitempty"`
	Antagonists    []string `json:"antagonists,omitempty"`
	IsFront        bool     `json:"is_front"`
}

// EquipmentPayload инвентарь с опциональной ссылкой на дескриптор.
type EquipmentPayload struct {
	Name           string `json:"name"`
	DescriptorGUID string `json:"descriptor_guid,omitempty"`
}

// CategoryPayload категория упражнений с иерархическими связями.
type CategoryPayload struct {
	Name    string   `json:"name"`
	Parents []string `json:"parents,omitempty"`
	Bases   []string `json:"bases,omitempty"`
}

// ExercisePayload упражнение со связями на мышцы и инвентарь.
type ExercisePayload struct {
	Name           string   `json:"name"`
	CategoryGUID   string   `json:"category_guid,omitempty"`
	DescriptorGUID string   `json:"descriptor_guid,omitempty"`
	Muscles        []string `json:"muscles,omitempty"`
	Equipment      []string `json:"equipment,omitempty"`
}
