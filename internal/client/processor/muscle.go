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

// MuscleProcessor применяет страницы мышц: скаляры, ссылка на дескриптор,
// набор связей-антагонистов (muscle <-> muscle).
type MuscleProcessor struct {
	store  storage.EntityStorage
	res    *resolver.Resolver
	logger *slog.Logger
}

// NewMuscle creates the muscle processor.
func NewMuscle(store storage.EntityStorage, res *resolver.Resolver, logger *slog.Logger) *MuscleProcessor {
	return &MuscleProcessor{store: store, res: res, logger: logger}
}

// Kind returns models.KindMuscle.
func (p *MuscleProcessor) Kind() models.EntityKind {
	return models.KindMuscle
}

// Apply применяет страницу мышц к локальному хранилищу.
// Сверка связей откладывается до сохранения скаляров всей страницы:
// обе стороны пары антагонистов могут прийти в одной странице.
func (p *MuscleProcessor) Apply(ctx context.Context, items []*models.Record) (*ApplyResult, error) {
	result := &ApplyResult{}

	type pendingLinks struct {
		guid    string
		desired []string
	}

	err := p.store.ApplyPage(ctx, func(tx storage.EntityTx) error {
		relations := make([]pendingLinks, 0, len(items))

		// Сначала скаляры всей страницы
		for _, item := range items {
			var payload models.MusclePayload
			if err := json.Unmarshal(item.Payload, &payload); err != nil {
				p.logger.Warn("malformed muscle payload, skipping",
					"guid", item.GUID, "error", err)
				result.SkippedItems++
				continue
			}

			resolved, err := p.res.ResolveDescriptor(tx, payload.DescriptorGUID)
			if err != nil {
				return err
			}
			payload.DescriptorGUID = resolved

			rec := item.Clone()
			rec.Payload, err = json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("failed to marshal muscle payload: %w", err)
			}

			if err := tx.PutRecord(rec); err != nil {
				return err
			}
			result.Applied++

			desired := payload.Antagonists
			if item.Deleted {
				// Tombstone оставляет запись, но снимает все связи
				desired = nil
			}
			relations = append(relations, pendingLinks{guid: item.GUID, desired: desired})
		}

		// Затем сверка связей
		for _, rel := range relations {
			links, err := resolvableLinks(tx, p.logger, models.KindMuscle, rel.guid, rel.desired, result)
			if err != nil {
				return err
			}
			if _, _, err := storage.ReconcileRelations(tx, models.RelationAntagonist, rel.guid, links); err != nil {
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
