package boltdb

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func localRecord(kind models.EntityKind, payload string) *models.Record {
	return &models.Record{
		GUID:      uuid.New().String(),
		Kind:      kind,
		UpdatedAt: time.Now().UTC(),
		Authority: models.AuthorityBidirectional,
		Payload:   json.RawMessage(payload),
	}
}

func TestStorage_ApplyPage_RecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	rec := localRecord(models.KindMuscle, `{"name":"Biceps"}`)
	err := s.ApplyPage(ctx, func(tx storage.EntityTx) error {
		return tx.PutRecord(rec)
	})
	require.NoError(t, err)

	got, err := s.GetRecord(ctx, models.KindMuscle, rec.GUID)
	require.NoError(t, err)
	assert.Equal(t, rec.GUID, got.GUID)
	assert.JSONEq(t, `{"name":"Biceps"}`, string(got.Payload))
}

func TestStorage_GetRecord_NotFound(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.GetRecord(ctx, models.KindMuscle, uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_ApplyPage_AtomicRollback(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	rec := localRecord(models.KindExercise, `{"name":"Squat"}`)
	err := s.ApplyPage(ctx, func(tx storage.EntityTx) error {
		if err := tx.PutRecord(rec); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	// Страница откатилась целиком
	_, err = s.GetRecord(ctx, models.KindExercise, rec.GUID)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_ApplyPage_CancelledContext(t *testing.T) {
	s := setupTestStorage(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.ApplyPage(ctx, func(tx storage.EntityTx) error {
		t.Fatal("page function must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStorage_Relations_PrefixScan(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	from := uuid.New().String()
	other := uuid.New().String()
	to1, to2 := uuid.New().String(), uuid.New().String()

	err := s.ApplyPage(ctx, func(tx storage.EntityTx) error {
		if err := tx.SetRelation(models.RelationExerciseMuscle, from, to1); err != nil {
			return err
		}
		if err := tx.SetRelation(models.RelationExerciseMuscle, from, to2); err != nil {
			return err
		}
		// Связь другого владельца не должна попасть в выборку
		return tx.SetRelation(models.RelationExerciseMuscle, other, to1)
	})
	require.NoError(t, err)

	got, err := s.Relations(ctx, models.RelationExerciseMuscle, from)
	require.NoError(t, err)

	expected := []string{to1, to2}
	sort.Strings(expected)
	sort.Strings(got)
	assert.Equal(t, expected, got)

	// Разные виды связей живут в разных bucket'ах
	got, err = s.Relations(ctx, models.RelationExerciseEquipment, from)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReconcileRelations(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	from := uuid.New().String()
	a, b, c := "aaa", "bbb", "ccc"

	err := s.ApplyPage(ctx, func(tx storage.EntityTx) error {
		added, removed, err := storage.ReconcileRelations(tx, models.RelationAntagonist, from, []string{a, b})
		require.NoError(t, err)
		assert.Equal(t, 2, added)
		assert.Equal(t, 0, removed)
		return nil
	})
	require.NoError(t, err)

	// Новый desired-набор: b остается, a удаляется, c добавляется
	err = s.ApplyPage(ctx, func(tx storage.EntityTx) error {
		added, removed, err := storage.ReconcileRelations(tx, models.RelationAntagonist, from, []string{b, c})
		require.NoError(t, err)
		assert.Equal(t, 1, added)
		assert.Equal(t, 1, removed)
		return nil
	})
	require.NoError(t, err)

	got, err := s.Relations(ctx, models.RelationAntagonist, from)
	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{b, c}, got)

	// Повторный вызов с тем же набором ничего не меняет
	err = s.ApplyPage(ctx, func(tx storage.EntityTx) error {
		added, removed, err := storage.ReconcileRelations(tx, models.RelationAntagonist, from, []string{b, c})
		require.NoError(t, err)
		assert.Equal(t, 0, added)
		assert.Equal(t, 0, removed)
		return nil
	})
	require.NoError(t, err)

	// Пустой desired-набор очищает все связи
	err = s.ApplyPage(ctx, func(tx storage.EntityTx) error {
		_, removed, err := storage.ReconcileRelations(tx, models.RelationAntagonist, from, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		return nil
	})
	require.NoError(t, err)

	got, err = s.Relations(ctx, models.RelationAntagonist, from)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStorage_SaveLocal_FiresHookAndClassifies(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	var changes []storage.Change
	s.SetChangeHook(func(ctx context.Context, ch storage.Change) {
		changes = append(changes, ch)
	})

	rec := localRecord(models.KindDescriptor, `{"text":"note"}`)
	staleStamp := rec.UpdatedAt.Add(-time.Hour)
	rec.UpdatedAt = staleStamp

	require.NoError(t, s.SaveLocal(ctx, rec, nil))
	require.Len(t, changes, 1)
	assert.Equal(t, models.ChangeInsert, changes[0].Change, "first save is an insert")
	assert.True(t, rec.UpdatedAt.After(staleStamp), "SaveLocal must bump the local timestamp")

	require.NoError(t, s.SaveLocal(ctx, rec, nil))
	require.Len(t, changes, 2)
	assert.Equal(t, models.ChangeUpdate, changes[1].Change, "second save is an update")
}

func TestStorage_SaveLocal_ReconcilesRelations(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	rec := localRecord(models.KindExercise, `{"name":"Row"}`)
	muscles := []string{uuid.New().String(), uuid.New().String()}

	err := s.SaveLocal(ctx, rec, map[models.RelationKind][]string{
		models.RelationExerciseMuscle: muscles,
	})
	require.NoError(t, err)

	got, err := s.Relations(ctx, models.RelationExerciseMuscle, rec.GUID)
	require.NoError(t, err)
	assert.ElementsMatch(t, muscles, got)
}

func TestStorage_DeleteLocal(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	var changes []storage.Change
	s.SetChangeHook(func(ctx context.Context, ch storage.Change) {
		changes = append(changes, ch)
	})

	rec := localRecord(models.KindExercise, `{"name":"Curl"}`)
	require.NoError(t, s.SaveLocal(ctx, rec, nil))

	require.NoError(t, s.DeleteLocal(ctx, models.KindExercise, rec.GUID))

	// Soft delete: запись остается как tombstone
	got, err := s.GetRecord(ctx, models.KindExercise, rec.GUID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	require.Len(t, changes, 2)
	assert.Equal(t, models.ChangeDelete, changes[1].Change)
}

func TestStorage_DeleteLocal_Missing(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	err := s.DeleteLocal(ctx, models.KindExercise, uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}
