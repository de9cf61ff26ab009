package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

func testOutboxEntry(occurredAt time.Time, fingerprint string) *models.OutboxEntry {
	return &models.OutboxEntry{
		ID:          uuid.New().String(),
		OccurredAt:  occurredAt,
		Kind:        models.KindExercise,
		EntityGUID:  uuid.New().String(),
		Change:      models.ChangeUpdate,
		Fingerprint: fingerprint,
		Payload:     []byte(`{"name":"Squat"}`),
	}
}

func TestOutbox_EnqueueAndListUnsent_Ordering(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	base := time.Now().UTC()

	// Ставим в очередь в обратном хронологическом порядке
	late := testOutboxEntry(base.Add(2*time.Second), "fp-late")
	early := testOutboxEntry(base, "fp-early")
	mid := testOutboxEntry(base.Add(time.Second), "fp-mid")

	for _, e := range []*models.OutboxEntry{late, early, mid} {
		require.NoError(t, s.Enqueue(ctx, e))
	}

	entries, err := s.ListUnsent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Читаем в порядке времени возникновения
	assert.Equal(t, early.ID, entries[0].ID)
	assert.Equal(t, mid.ID, entries[1].ID)
	assert.Equal(t, late.ID, entries[2].ID)
}

func TestOutbox_ListUnsent_Limit(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Enqueue(ctx, testOutboxEntry(base.Add(time.Duration(i)*time.Second), "fp")))
	}

	entries, err := s.ListUnsent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestOutbox_HasPendingDuplicate(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	entry := testOutboxEntry(time.Now().UTC(), "fp-1")
	require.NoError(t, s.Enqueue(ctx, entry))

	found, err := s.HasPendingDuplicate(ctx, entry.Kind, entry.EntityGUID, entry.Change, "fp-1")
	require.NoError(t, err)
	assert.True(t, found)

	// Другой отпечаток того же изменения дубликатом не считается
	found, err = s.HasPendingDuplicate(ctx, entry.Kind, entry.EntityGUID, entry.Change, "fp-2")
	require.NoError(t, err)
	assert.False(t, found)

	// Другой тип изменения тоже
	found, err = s.HasPendingDuplicate(ctx, entry.Kind, entry.EntityGUID, models.ChangeDelete, "fp-1")
	require.NoError(t, err)
	assert.False(t, found)

	// Отправленный элемент больше не блокирует постановку в очередь
	require.NoError(t, s.MarkSent(ctx, []string{entry.ID}))
	found, err = s.HasPendingDuplicate(ctx, entry.Kind, entry.EntityGUID, entry.Change, "fp-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOutbox_MarkSentAndCount(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	base := time.Now().UTC()
	e1 := testOutboxEntry(base, "fp-1")
	e2 := testOutboxEntry(base.Add(time.Second), "fp-2")
	require.NoError(t, s.Enqueue(ctx, e1))
	require.NoError(t, s.Enqueue(ctx, e2))

	count, err := s.CountUnsent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, s.MarkSent(ctx, []string{e1.ID}))

	count, err = s.CountUnsent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entries, err := s.ListUnsent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e2.ID, entries[0].ID)
}

func TestOutbox_Delete(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	entry := testOutboxEntry(time.Now().UTC(), "fp")
	require.NoError(t, s.Enqueue(ctx, entry))

	require.NoError(t, s.Delete(ctx, []string{entry.ID}))

	count, err := s.CountUnsent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestOutbox_PruneSent(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	now := time.Now().UTC()

	oldSent := testOutboxEntry(now.Add(-10*24*time.Hour), "fp-old-sent")
	oldUnsent := testOutboxEntry(now.Add(-10*24*time.Hour), "fp-old-unsent")
	freshSent := testOutboxEntry(now.Add(-time.Hour), "fp-fresh-sent")

	for _, e := range []*models.OutboxEntry{oldSent, oldUnsent, freshSent} {
		require.NoError(t, s.Enqueue(ctx, e))
	}
	require.NoError(t, s.MarkSent(ctx, []string{oldSent.ID, freshSent.ID}))

	pruned, err := s.PruneSent(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, pruned, "only old sent entries are pruned")

	// Неотправленный элемент не чистится никогда
	count, err := s.CountUnsent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSyncState_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStorage(t)

	_, err := s.GetSyncState(ctx, models.DefaultPartition)
	assert.ErrorIs(t, err, storage.ErrStateNotFound)

	state := models.NewSyncState(models.DefaultPartition)
	state.SeedCompleted = true
	state.SeedVersion = 2
	state.SetCursor(models.KindMuscle, models.Cursor{
		Ts:  time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		Seq: 42,
	})

	require.NoError(t, s.SaveSyncState(ctx, state))

	got, err := s.GetSyncState(ctx, models.DefaultPartition)
	require.NoError(t, err)
	assert.True(t, got.SeedCompleted)
	assert.Equal(t, 2, got.SeedVersion)

	cur, err := got.Cursor(models.KindMuscle)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cur.Seq)
}
