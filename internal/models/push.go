package models

import "time"

// PushStatus итоговый статус обработки одного элемента push-запроса.
type PushStatus string

const (
	// PushUpserted запись создана или обновлена
	PushUpserted PushStatus = "upserted"
	// PushDeleted запись помечена удаленной
	PushDeleted PushStatus = "deleted"
	// PushSkippedDuplicate входящая запись не новее существующей, изменений нет
	PushSkippedDuplicate PushStatus = "skipped_duplicate"
	// PushConflict запись принадлежит серверу, push отклонен
	PushConflict PushStatus = "conflict"
	// PushNotFound tombstone для несуществующей записи, вставка не выполняется
	PushNotFound PushStatus = "not_found"
	// PushFailed ошибка хранилища, элемент можно повторить позже
	PushFailed PushStatus = "failed"
)

// Terminal reports whether the status is final: retrying the same item
// would not change the outcome, so the outbox entry can be marked sent.
func (s PushStatus) Terminal() bool {
	switch s {
	case PushUpserted, PushDeleted, PushSkippedDuplicate, PushNotFound:
		return true
	default:
		return false
	}
}

// PushItemResult результат обработки одного элемента push-запроса.
type PushItemResult struct {
	GUID    string     `json:"guid"`
	Status  PushStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}

// PushResult агрегированный результат обработки push-запроса.
type PushResult struct {
	ServerTime time.Time        `json:"server_time"`
	Items      []PushItemResult `json:"items"`
	Accepted   int              `json:"accepted"`
	Failed     int              `json:"failed"`
}

// Page один ограниченный батч записей из pull-запроса.
// Если записей меньше запрошенного количества, Next равен nil
// (поток для этого вызова исчерпан); иначе Next указывает на
// (timestamp, sequence) последней записи.
type Page struct {
	ServerTime time.Time `json:"server_time"`
	Next       *Cursor   `json:"next"`
	Items      []*Record `json:"items"`
}
