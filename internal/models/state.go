package models

import (
	"fmt"
	"time"
)

// DefaultPartition имя единственной глобальной партиции состояния синхронизации.
const DefaultPartition = "global"

// SyncState персистентное состояние синхронизации одной партиции.
// Машина состояний: NotSeeded -> SeedInProgress -> Seeded.
// SeedInProgress может откатиться в NotSeeded при сбое (повтор с нуля);
// из Seeded выполняются только Delta-проходы.
type SyncState struct {
	LastSeedAt       time.Time             `json:"last_seed_at"`      // LastSeedAt время последнего успешного seed
	LastDeltaAt      time.Time             `json:"last_delta_at"`     // LastDeltaAt время последнего успешного delta
	UpstreamSnapshot time.Time             `json:"upstream_snapshot"` // UpstreamSnapshot последнее наблюдаемое серверное время
	Cursors          map[EntityKind]string `json:"cursors"`           // Cursors курсор-токены по видам сущностей
	Partition        string                `json:"partition"`         // Partition имя партиции
	SeedVersion      int                   `json:"seed_version"`      // SeedVersion номер успешно завершенного seed
	SeedCompleted    bool                  `json:"seed_completed"`    // SeedCompleted выполнен ли полный seed
	SeedInProgress   bool                  `json:"seed_in_progress"`  // SeedInProgress идет ли seed прямо сейчас
}

// NewSyncState creates a fresh state for the partition (NotSeeded).
func NewSyncState(partition string) *SyncState {
	return &SyncState{
		Partition: partition,
		Cursors:   make(map[EntityKind]string),
	}
}

// Cursor returns the persisted cursor for the kind,
// or the zero cursor if none has been persisted yet.
func (s *SyncState) Cursor(kind EntityKind) (Cursor, error) {
	token, ok := s.Cursors[kind]
	if !ok || token == "" {
		return ZeroCursor(), nil
	}

	cur, err := ParseCursorToken(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("cursor for kind %q: %w", kind, err)
	}
	return cur, nil
}

// SetCursor persists the cursor token for the kind in the state.
func (s *SyncState) SetCursor(kind EntityKind, cur Cursor) {
	if s.Cursors == nil {
		s.Cursors = make(map[EntityKind]string)
	}
	s.Cursors[kind] = cur.Token()
}

// ResetCursors очищает все курсоры (перед повторным seed с нуля).
func (s *SyncState) ResetCursors() {
	s.Cursors = make(map[EntityKind]string)
}
