package processor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

// CategoryProcessor применяет страницы категорий: скаляры плюс два
// набора иерархических связей (parents и bases, category <-> category).
// Иерархия может содержать циклы: связи хранятся join-таблицей
// и сверяются set-diff'ом, обратных ссылок в памяти нет.
type CategoryProcessor struct {
	store  storage.EntityStorage
	logger *slog.Logger
}

// NewCategory creates the category processor.
func NewCategory(store storage.EntityStorage, logger *slog.Logger) *CategoryProcessor {
	return &CategoryProcessor{store: store, logger: logger}
}

// Kind returns models.KindCategory.
func (p *CategoryProcessor) Kind() models.EntityKind {
	return models.KindCategory
}

// Apply применяет страницу категорий к локальному хранилищу.
// Связи сверяются после сохранения скаляров всей страницы,
// чтобы родитель и потомок из одной страницы нашли друг друга.
func (p *CategoryProcessor) Apply(ctx context.Context, items []*models.Record) (*ApplyResult, error) {
	result := &ApplyResult{}

	type pendingLinks struct {
		guid    string
		parents []string
		bases   []string
	}

	err := p.store.ApplyPage(ctx, func(tx storage.EntityTx) error {
		relations := make([]pendingLinks, 0, len(items))

		for _, item := range items {
			var payload models.CategoryPayload
			if err := json.Unmarshal(item.Payload, &payload); err != nil {
				p.logger.Warn("malformed category payload, skipping",
					"guid", item.GUID, "error", err)
				result.SkippedItems++
				continue
			}

			if err := tx.PutRecord(item); err != nil {
				return err
			}
			result.Applied++

			pending := pendingLinks{guid: item.GUID, parents: payload.Parents, bases: payload.Bases}
			if item.Deleted {
				pending.parents = nil
				pending.bases = nil
			}
			relations = append(relations, pending)
		}

		for _, rel := range relations {
			parents, err := resolvableLinks(tx, p.logger, models.KindCategory, rel.guid, rel.parents, result)
			if err != nil {
				return err
			}
			if _, _, err := storage.ReconcileRelations(tx, models.RelationCategoryParent, rel.guid, parents); err != nil {
				return err
			}

			bases, err := resolvableLinks(tx, p.logger, models.KindCategory, rel.guid, rel.bases, result)
			if err != nil {
				return err
			}
			if _, _, err := storage.ReconcileRelations(tx, models.RelationCategoryBase, rel.guid, bases); err != nil {
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
