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

// EquipmentProcessor применяет страницы инвентаря.
// Наборов связей нет, но есть ссылка на дескриптор.
type EquipmentProcessor struct {
	store  storage.EntityStorage
	res    *resolver.Resolver
	logger *slog.Logger
}

// NewEquipment creates the equipment processor.
func NewEquipment(store storage.EntityStorage, res *resolver.Resolver, logger *slog.Logger) *EquipmentProcessor {
	return &EquipmentProcessor{store: store, res: res, logger: logger}
}

// Kind returns models.KindEquipment.
func (p *EquipmentProcessor) Kind() models.EntityKind {
	return models.KindEquipment
}

// Apply применяет страницу инвентаря к локальному хранилищу.
func (p *EquipmentProcessor) Apply(ctx context.Context, items []*models.Record) (*ApplyResult, error) {
	result := &ApplyResult{}

	err := p.store.ApplyPage(ctx, func(tx storage.EntityTx) error {
		for _, item := range items {
			var payload models.EquipmentPayload
			if err := json.Unmarshal(item.Payload, &payload); err != nil {
				p.logger.Warn("malformed equipment payload, skipping",
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
				return fmt.Errorf("failed to marshal equipment payload: %w", err)
			}

			if err := tx.PutRecord(rec); err != nil {
				return err
			}
			result.Applied++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
