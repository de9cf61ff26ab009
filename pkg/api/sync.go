package api

import (
	"encoding/json"
	"time"
)

// Page size bounds: запрошенный размер страницы всегда зажимается
// в эти границы, чтобы ограничить память и стоимость запроса.
const (
	MinPageSize     = 1
	MaxPageSize     = 500
	DefaultPageSize = 200
)

// ClampPageSize приводит запрошенный размер страницы к допустимым границам.
// Нулевое значение означает "не задан" и дает размер по умолчанию.
func ClampPageSize(take int) int {
	switch {
	case take == 0:
		return DefaultPageSize
	case take < MinPageSize:
		return MinPageSize
	case take > MaxPageSize:
		return MaxPageSize
	default:
		return take
	}
}

// CursorRef позиция в потоке изменений в wire-формате.
type CursorRef struct {
	Ts  time.Time `json:"ts"`
	Seq int64     `json:"seq"`
}

// SyncItem представляет одну реплицируемую запись в wire-формате.
// Payload содержит kind-специфичные поля, непрозрачные для транспорта.
type SyncItem struct {
	UpdatedAt  time.Time       `json:"updated_at"`
	GUID       string          `json:"guid"`
	Kind       string          `json:"kind"`
	Authority  string          `json:"authority"`
	Payload    json.RawMessage `json:"payload"`
	UpdatedSeq int64           `json:"updated_seq"`
	Deleted    bool            `json:"deleted"`
}

// PullResponse представляет ответ сервера на pull-запрос.
// Next равен nil, когда поток для этого вызова исчерпан.
type PullResponse struct {
	ServerTime time.Time  `json:"server_time"`
	Next       *CursorRef `json:"next"`
	Items      []SyncItem `json:"items"`
}

// PushRequest представляет push-запрос клиента с батчем локальных мутаций.
type PushRequest struct {
	ClientTime time.Time  `json:"client_time"`
	Items      []SyncItem `json:"items"`
}

// PushItemResult результат обработки одного элемента push-запроса.
type PushItemResult struct {
	GUID    string `json:"guid"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// PushResponse представляет ответ сервера на push-запрос.
type PushResponse struct {
	ServerTime time.Time        `json:"server_time"`
	Items      []PushItemResult `json:"items"`
	Accepted   int              `json:"accepted"`
	Failed     int              `json:"failed"`
}

// ErrorResponse представляет ошибку API в JSON-формате.
type ErrorResponse struct {
	Error string `json:"error"`
}
