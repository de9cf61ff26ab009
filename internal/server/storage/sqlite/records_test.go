package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gymsync/internal/models"
	"github.com/iudanet/gymsync/internal/server/storage"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	// Используем in-memory database для тестов
	s, err := New(ctx, ":memory:")
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
	}

	return s, cleanup
}

func insertTestRecord(t *testing.T, ctx context.Context, s *Storage, kind models.EntityKind, ts time.Time, seq int64) *models.Record {
	t.Helper()

	rec := &models.Record{
		GUID:       uuid.New().String(),
		Kind:       kind,
		UpdatedAt:  ts,
		UpdatedSeq: seq,
		Authority:  models.AuthorityBidirectional,
		Payload:    json.RawMessage(`{"name":"test"}`),
	}

	err := s.Batch(ctx, func(tx storage.BatchTx) error {
		return tx.Upsert(rec)
	})
	require.NoError(t, err)

	return rec
}

func TestStorage_GetRecord(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	ts := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	saved := insertTestRecord(t, ctx, s, models.KindMuscle, ts, 5)

	got, err := s.GetRecord(ctx, models.KindMuscle, saved.GUID)
	require.NoError(t, err)

	assert.Equal(t, saved.GUID, got.GUID)
	assert.Equal(t, models.KindMuscle, got.Kind)
	assert.True(t, ts.Equal(got.UpdatedAt), "timestamp must survive the round trip")
	assert.Equal(t, int64(5), got.UpdatedSeq)
	assert.Equal(t, models.AuthorityBidirectional, got.Authority)
	assert.JSONEq(t, `{"name":"test"}`, string(got.Payload))
}

func TestStorage_GetRecord_NotFound(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GetRecord(ctx, models.KindMuscle, uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_GetRecord_KindScoped(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	saved := insertTestRecord(t, ctx, s, models.KindMuscle, time.Now().UTC(), 1)

	// Тот же GUID под другим видом не находится
	_, err := s.GetRecord(ctx, models.KindExercise, saved.GUID)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_ListSince_Ordering(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	// Вставляем в перемешанном порядке
	r3 := insertTestRecord(t, ctx, s, models.KindExercise, base.Add(2*time.Second), 3)
	r1 := insertTestRecord(t, ctx, s, models.KindExercise, base, 1)
	r2 := insertTestRecord(t, ctx, s, models.KindExercise, base, 2)

	records, err := s.ListSince(ctx, models.KindExercise, models.ZeroCursor(), 10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, r1.GUID, records[0].GUID)
	assert.Equal(t, r2.GUID, records[1].GUID)
	assert.Equal(t, r3.GUID, records[2].GUID)
}

func TestStorage_ListSince_CursorIsExclusive(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	r1 := insertTestRecord(t, ctx, s, models.KindCategory, base, 1)
	r2 := insertTestRecord(t, ctx, s, models.KindCategory, base, 2)
	r3 := insertTestRecord(t, ctx, s, models.KindCategory, base.Add(time.Second), 3)

	// Курсор на штампе r1: r1 не возвращается, r2 и r3 возвращаются
	records, err := s.ListSince(ctx, models.KindCategory, r1.Stamp(), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, r2.GUID, records[0].GUID)
	assert.Equal(t, r3.GUID, records[1].GUID)

	// Курсор на штампе последней записи: пусто
	records, err = s.ListSince(ctx, models.KindCategory, r3.Stamp(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStorage_ListSince_Limit(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		insertTestRecord(t, ctx, s, models.KindEquipment, base, i)
	}

	records, err := s.ListSince(ctx, models.KindEquipment, models.ZeroCursor(), 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStorage_ListSince_ClosedStorageReturnsError(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStorage(t)

	insertTestRecord(t, ctx, s, models.KindEquipment, time.Now().UTC(), 1)
	require.NoError(t, s.Close())

	// Ошибки чтения не теряются: вызывающий код получает их явно
	records, err := s.ListSince(ctx, models.KindEquipment, models.ZeroCursor(), 10)
	require.Error(t, err)
	assert.Nil(t, records)
}

func TestStorage_ListSince_IncludesTombstones(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	rec := &models.Record{
		GUID:       uuid.New().String(),
		Kind:       models.KindDescriptor,
		UpdatedAt:  time.Now().UTC(),
		UpdatedSeq: 1,
		Deleted:    true,
		Authority:  models.AuthorityUpstream,
		Payload:    json.RawMessage(`{}`),
	}
	err := s.Batch(ctx, func(tx storage.BatchTx) error {
		return tx.Upsert(rec)
	})
	require.NoError(t, err)

	records, err := s.ListSince(ctx, models.KindDescriptor, models.ZeroCursor(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Deleted, "tombstones must replicate like any other record")
}

func TestStorage_Batch_Upsert_Replaces(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	first := insertTestRecord(t, ctx, s, models.KindMuscle, time.Now().UTC(), 1)

	updated := first.Clone()
	updated.UpdatedSeq = 2
	updated.Payload = json.RawMessage(`{"name":"renamed"}`)

	err := s.Batch(ctx, func(tx storage.BatchTx) error {
		return tx.Upsert(updated)
	})
	require.NoError(t, err)

	got, err := s.GetRecord(ctx, models.KindMuscle, first.GUID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.UpdatedSeq)
	assert.JSONEq(t, `{"name":"renamed"}`, string(got.Payload))
}

func TestStorage_Batch_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	guid := uuid.New().String()
	sentinel := errors.New("boom")

	err := s.Batch(ctx, func(tx storage.BatchTx) error {
		rec := &models.Record{
			GUID:       guid,
			Kind:       models.KindMuscle,
			UpdatedAt:  time.Now().UTC(),
			UpdatedSeq: 1,
			Authority:  models.AuthorityBidirectional,
			Payload:    json.RawMessage(`{}`),
		}
		if err := tx.Upsert(rec); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	// Запись не должна была сохраниться
	_, err = s.GetRecord(ctx, models.KindMuscle, guid)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_NextSeq_Monotonic(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	var values []int64
	err := s.Batch(ctx, func(tx storage.BatchTx) error {
		for i := 0; i < 5; i++ {
			v, err := tx.NextSeq()
			if err != nil {
				return err
			}
			values = append(values, v)
		}
		return nil
	})
	require.NoError(t, err)

	require.Len(t, values, 5)
	for i := 1; i < len(values); i++ {
		assert.Equal(t, values[i-1]+1, values[i], "sequence must advance by one")
	}

	// Счетчик переживает транзакцию
	var next int64
	err = s.Batch(ctx, func(tx storage.BatchTx) error {
		v, err := tx.NextSeq()
		next = v
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, values[len(values)-1]+1, next)
}
