package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor представляет позицию в потоке изменений сервера.
// Все записи строго после (Ts, Seq) еще не были получены клиентом.
// Значение неизменяемое и двигается только вперед.
type Cursor struct {
	Ts  time.Time `json:"ts"`
	Seq int64     `json:"seq"`
}

// ZeroCursor returns the cursor before the first possible record.
// Its timestamp is the minimum representable instant (0001-01-01T00:00:00Z).
func ZeroCursor() Cursor {
	return Cursor{Ts: time.Time{}.UTC(), Seq: 0}
}

// Compare orders cursors by timestamp first, then by sequence as tie-break.
// Returns -1 if c is before other, 0 if equal, +1 if after.
func (c Cursor) Compare(other Cursor) int {
	if c.Ts.Before(other.Ts) {
		return -1
	}
	if c.Ts.After(other.Ts) {
		return 1
	}
	switch {
	case c.Seq < other.Seq:
		return -1
	case c.Seq > other.Seq:
		return 1
	default:
		return 0
	}
}

// Before reports whether c is strictly before other.
func (c Cursor) Before(other Cursor) bool {
	return c.Compare(other) < 0
}

// IsZero reports whether the cursor is the zero cursor.
func (c Cursor) IsZero() bool {
	return c.Ts.IsZero() && c.Seq == 0
}

// Token serializes the cursor into its persisted string form:
// "<RFC3339Nano UTC timestamp>|<integer sequence>".
// The round trip through ParseCursorToken is lossless.
func (c Cursor) Token() string {
	return c.Ts.UTC().Format(time.RFC3339Nano) + "|" + strconv.FormatInt(c.Seq, 10)
}

// String implements fmt.Stringer for logging.
func (c Cursor) String() string {
	return c.Token()
}

// ParseCursorToken restores a cursor from its persisted token form.
func ParseCursorToken(token string) (Cursor, error) {
	idx := strings.LastIndex(token, "|")
	if idx < 0 {
		return Cursor{}, fmt.Errorf("invalid cursor token %q: missing separator", token)
	}

	ts, err := time.Parse(time.RFC3339Nano, token[:idx])
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	seq, err := strconv.ParseInt(token[idx+1:], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor sequence: %w", err)
	}

	return Cursor{Ts: ts.UTC(), Seq: seq}, nil
}
