package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

// RunEditDescriptor создает или редактирует дескриптор локально.
// Изменение проходит через путь локальной записи и попадает в outbox.
func RunEditDescriptor(ctx context.Context, app *App, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: edit-descriptor <guid|new> <text>")
	}

	guid := args[0]
	if guid == "new" {
		guid = uuid.New().String()
	}

	rec, err := app.Store.GetRecord(ctx, models.KindDescriptor, guid)
	if err != nil {
		if !errors.Is(err, storage.ErrRecordNotFound) {
			return fmt.Errorf("failed to read descriptor: %w", err)
		}
		rec = &models.Record{
			GUID:      guid,
			Kind:      models.KindDescriptor,
			Authority: models.AuthorityBidirectional,
		}
	}

	if rec.Authority == models.AuthorityUpstream {
		return fmt.Errorf("descriptor %s is owned upstream and cannot be edited locally", guid)
	}

	payload, err := json.Marshal(models.DescriptorPayload{Text: args[1]})
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}
	rec.Payload = payload
	rec.Deleted = false

	if err := app.Store.SaveLocal(ctx, rec, nil); err != nil {
		return fmt.Errorf("failed to save descriptor: %w", err)
	}

	fmt.Printf("Descriptor %s saved, change queued for push\n", guid)
	return nil
}

// RunEditExercise переименовывает упражнение локально.
func RunEditExercise(ctx context.Context, app *App, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: edit-exercise <guid> <name>")
	}
	guid := args[0]

	rec, err := app.Store.GetRecord(ctx, models.KindExercise, guid)
	if err != nil {
		return fmt.Errorf("failed to read exercise: %w", err)
	}
	if rec.Authority == models.AuthorityUpstream {
		return fmt.Errorf("exercise %s is owned upstream and cannot be edited locally", guid)
	}

	var payload models.ExercisePayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse exercise payload: %w", err)
	}
	payload.Name = args[1]

	rec.Payload, err = json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}

	// Наборы связей остаются как были: сверяем их с самими собой
	rels := map[models.RelationKind][]string{
		models.RelationExerciseMuscle:    payload.Muscles,
		models.RelationExerciseEquipment: payload.Equipment,
	}

	if err := app.Store.SaveLocal(ctx, rec, rels); err != nil {
		return fmt.Errorf("failed to save exercise: %w", err)
	}

	fmt.Printf("Exercise %s saved, change queued for push\n", guid)
	return nil
}

// RunDeleteExercise помечает упражнение удаленным локально.
func RunDeleteExercise(ctx context.Context, app *App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete-exercise <guid>")
	}

	if err := app.Store.DeleteLocal(ctx, models.KindExercise, args[0]); err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return fmt.Errorf("exercise %s not found locally", args[0])
		}
		return fmt.Errorf("failed to delete exercise: %w", err)
	}

	fmt.Printf("Exercise %s marked deleted, change queued for push\n", args[0])
	return nil
}
