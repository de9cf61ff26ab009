package processor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

// DescriptorProcessor применяет страницы дескрипторов.
// У дескрипторов нет ни ссылок, ни наборов связей - только скаляры.
type DescriptorProcessor struct {
	store  storage.EntityStorage
	logger *slog.Logger
}

// NewDescriptor creates the descriptor processor.
func NewDescriptor(store storage.EntityStorage, logger *slog.Logger) *DescriptorProcessor {
	return &DescriptorProcessor{store: store, logger: logger}
}

// Kind returns models.KindDescriptor.
func (p *DescriptorProcessor) Kind() models.EntityKind {
	return models.KindDescriptor
}

// Apply применяет страницу дескрипторов к локальному хранилищу.
func (p *DescriptorProcessor) Apply(ctx context.Context, items []*models.Record) (*ApplyResult, error) {
	result := &ApplyResult{}

	err := p.store.ApplyPage(ctx, func(tx storage.EntityTx) error {
		for _, item := range items {
			var payload models.DescriptorPayload
			if err := json.Unmarshal(item.Payload, &payload); err != nil {
				p.logger.Warn("malformed descriptor payload, skipping",
					"guid", item.GUID, "error", err)
				result.SkippedItems++
				continue
			}

			if err := tx.PutRecord(item); err != nil {
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
