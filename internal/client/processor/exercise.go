package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/iudanet/gymsync/internal/client/resolver"
	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

// ExerciseProcessor применяет страницы упражнений: скаляры, ссылки на
// категорию и дескриптор, наборы связей на мышцы и инвентарь.
type ExerciseProcessor struct {
	store  storage.EntityStorage
	res    *resolver.Resolver
	logger *slog.Logger
}

// NewExercise creates the exercise processor.
func NewExercise(store storage.EntityStorage, res *resolver.Resolver, logger *slog.Logger) *ExerciseProcessor {
	return &ExerciseProcessor{store: store, res: res, logger: logger}
}

// Kind returns models.KindExercise.
func (p *ExerciseProcessor) Kind() models.EntityKind {
	return models.KindExercise
}

// Apply применяет страницу упражнений к локальному хранилищу.
func (p *ExerciseProcessor) Apply(ctx context.Context, items []*models.Record) (*ApplyResult, error) {
	result := &ApplyResult{}

	type pendingLinks struct {
		guid      string
		muscles   []string
		equipment []string
	}

	err := p.store.ApplyPage(ctx, func(tx storage.EntityTx) error {
		relations := make([]pendingLinks, 0, len(items))

		for _, item := range items {
			var payload models.ExercisePayload
			if err := json.Unmarshal(item.Payload, &payload); err != nil {
				p.logger.Warn("malformed exercise payload, skipping",
					"guid", item.GUID, "error", err)
				result.SkippedItems++
				continue
			}

			resolved, err := p.res.ResolveDescriptor(tx, payload.DescriptorGUID)
			if err != nil {
				return err
			}
			payload.DescriptorGUID = resolved

			// Ссылка на категорию не порождает placeholder: категория -
			// полноценная сущность, висячая ссылка логируется и обнуляется
			if payload.CategoryGUID != "" {
				exists, err := tx.HasRecord(models.KindCategory, payload.CategoryGUID)
				if err != nil {
					return err
				}
				if !exists {
					p.logger.Warn("exercise references unknown category",
						"guid", item.GUID,
						"category", payload.CategoryGUID)
					payload.CategoryGUID = ""
				}
			}

			rec := item.Clone()
			rec.Payload, err = json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("failed to marshal exercise payload: %w", err)
			}

			if err := tx.PutRecord(rec); err != nil {
				return err
			}
			result.Applied++

			pending := pendingLinks{guid: item.GUID, muscles: payload.Muscles, equipment: payload.Equipment}
			if item.Deleted {
				pending.muscles = nil
				pending.equipment = nil
			}
			relations = append(relations, pending)
		}

		for _, rel := range relations {
			muscles, err := resolvableLinks(tx, p.logger, models.KindMuscle, rel.guid, rel.muscles, result)
			if err != nil {
				return err
			}
			if _, _, err := storage.ReconcileRelations(tx, models.RelationExerciseMuscle, rel.guid, muscles); err != nil {
				return err
			}

			equipment, err := resolvableLinks(tx, p.logger, models.KindEquipment, rel.guid, rel.equipment, result)
			if err != nil {
				return err
			}
			if _, _, err := storage.ReconcileRelations(tx, models.RelationExerciseEquipment, rel.guid, equipment); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
