package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gymsync/internal/client/outbox"
	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/client/storage/boltdb"
	"github.com/iudanet/gymsync/internal/models"
)

// seedUpstream кладет запись напрямую, минуя хук захвата:
// так появляются записи, пришедшие с сервера.
func seedUpstream(t *testing.T, store *boltdb.Storage, rec *models.Record) {
	t.Helper()

	err := store.ApplyPage(context.Background(), func(tx storage.EntityTx) error {
		return tx.PutRecord(rec)
	})
	require.NoError(t, err)
}

func setupApp(t *testing.T) (*App, *boltdb.Storage) {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	// Локальные правки должны попадать в outbox через хук захвата
	capture := outbox.NewCapture(store, slog.New(slog.DiscardHandler))
	store.SetChangeHook(capture.Hook())

	return &App{Store: store}, store
}

func TestRunEditDescriptor_CreateNew(t *testing.T) {
	ctx := context.Background()
	app, store := setupApp(t)

	err := RunEditDescriptor(ctx, app, []string{"new", "my note"})
	require.NoError(t, err)

	// Ровно одна локальная мутация в очереди
	count, err := store.CountUnsent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entries, err := store.ListUnsent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.KindDescriptor, entries[0].Kind)
	assert.Equal(t, models.ChangeInsert, entries[0].Change)
}

func TestRunEditDescriptor_EditExisting(t *testing.T) {
	ctx := context.Background()
	app, store := setupApp(t)

	guid := uuid.New().String()
	require.NoError(t, RunEditDescriptor(ctx, app, []string{guid, "first"}))
	require.NoError(t, RunEditDescriptor(ctx, app, []string{guid, "second"}))

	rec, err := store.GetRecord(ctx, models.KindDescriptor, guid)
	require.NoError(t, err)

	var payload models.DescriptorPayload
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Equal(t, "second", payload.Text)

	count, err := store.CountUnsent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "both distinct edits queue for push")
}

func TestRunEditDescriptor_UpstreamOwnedRejected(t *testing.T) {
	ctx := context.Background()
	app, store := setupApp(t)

	guid := uuid.New().String()
	payload, err := json.Marshal(models.DescriptorPayload{Text: "server"})
	require.NoError(t, err)

	// Запись, принадлежащая серверу, кладется в обход хука
	upstream := &models.Record{
		GUID:      guid,
		Kind:      models.KindDescriptor,
		UpdatedAt: time.Now().UTC(),
		Authority: models.AuthorityUpstream,
		Payload:   payload,
	}
	seedUpstream(t, store, upstream)

	err = RunEditDescriptor(ctx, app, []string{guid, "local edit"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owned upstream")

	count, err := store.CountUnsent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestRunEditExercise(t *testing.T) {
	ctx := context.Background()
	app, store := setupApp(t)

	guid := uuid.New().String()
	muscleGUID := uuid.New().String()
	payload, err := json.Marshal(models.ExercisePayload{
		Name:    "Curl",
		Muscles: []string{muscleGUID},
	})
	require.NoError(t, err)

	rec := &models.Record{
		GUID:      guid,
		Kind:      models.KindExercise,
		Authority: models.AuthorityBidirectional,
		Payload:   payload,
	}
	require.NoError(t, store.SaveLocal(ctx, rec, map[models.RelationKind][]string{
		models.RelationExerciseMuscle: {muscleGUID},
	}))

	require.NoError(t, RunEditExercise(ctx, app, []string{guid, "Hammer Curl"}))

	got, err := store.GetRecord(ctx, models.KindExercise, guid)
	require.NoError(t, err)
	var gotPayload models.ExercisePayload
	require.NoError(t, json.Unmarshal(got.Payload, &gotPayload))
	assert.Equal(t, "Hammer Curl", gotPayload.Name)

	// Наборы связей пережили переименование
	rels, err := store.Relations(ctx, models.RelationExerciseMuscle, guid)
	require.NoError(t, err)
	assert.Equal(t, []string{muscleGUID}, rels)
}

func TestRunEditExercise_NotFound(t *testing.T) {
	ctx := context.Background()
	app, _ := setupApp(t)

	err := RunEditExercise(ctx, app, []string{uuid.New().String(), "name"})
	assert.Error(t, err)
}

func TestRunDeleteExercise(t *testing.T) {
	ctx := context.Background()
	app, store := setupApp(t)

	guid := uuid.New().String()
	payload, err := json.Marshal(models.ExercisePayload{Name: "Curl"})
	require.NoError(t, err)

	rec := &models.Record{
		GUID:      guid,
		Kind:      models.KindExercise,
		Authority: models.AuthorityBidirectional,
		Payload:   payload,
	}
	require.NoError(t, store.SaveLocal(ctx, rec, nil))

	require.NoError(t, RunDeleteExercise(ctx, app, []string{guid}))

	got, err := store.GetRecord(ctx, models.KindExercise, guid)
	require.NoError(t, err)
	assert.True(t, got.Deleted, "delete is a soft delete")

	entries, err := store.ListUnsent(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, models.ChangeDelete, entries[len(entries)-1].Change)
}

func TestRunDeleteExercise_Missing(t *testing.T) {
	ctx := context.Background()
	app, _ := setupApp(t)

	err := RunDeleteExercise(ctx, app, []string{uuid.New().String()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found locally")
}

func TestEditCommands_UsageErrors(t *testing.T) {
	ctx := context.Background()
	app, _ := setupApp(t)

	assert.Error(t, RunEditDescriptor(ctx, app, []string{"only-one"}))
	assert.Error(t, RunEditExercise(ctx, app, nil))
	assert.Error(t, RunDeleteExercise(ctx, app, []string{"a", "b"}))
}
