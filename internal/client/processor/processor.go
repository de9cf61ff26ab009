package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iudanet/gymsync/internal/client/resolver"
	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
)

// Processor применяет страницу записей своего вида к локальному хранилищу.
type Processor interface {
	// Kind возвращает вид сущности процессора.
	Kind() models.EntityKind

	// Apply применяет страницу записей: upsert скаляров со штампами
	// сервера как есть (на pull-стороне конфликты не разрешаются),
	// затем сверка наборов связей. Страница применяется атомарно.
	Apply(ctx context.Context, items []*models.Record) (*ApplyResult, error)
}

// ApplyResult результат применения одной страницы.
type ApplyResult struct {
	Applied      int // Applied количество примененных записей
	SkippedItems int // SkippedItems записи с невалидным payload, пропущены
	SkippedLinks int // SkippedLinks связи с неразрешимой целью, пропущены
}

// Registry отображает вид сущности на его процессор.
// Собирается один раз при старте; неизвестный вид - явная ошибка.
type Registry struct {
	processors map[models.EntityKind]Processor
}

// NewRegistry builds one processor per supported entity kind.
func NewRegistry(store storage.EntityStorage, res *resolver.Resolver, logger *slog.Logger) *Registry {
	processors := map[models.EntityKind]Processor{
		models.KindDescriptor: NewDescriptor(store, logger),
		models.KindMuscle:     NewMuscle(store, res, logger),
		models.KindEquipment:  NewEquipment(store, res, logger),
		models.KindCategory:   NewCategory(store, logger),
		models.KindExercise:   NewExercise(store, res, logger),
	}
	return &Registry{processors: processors}
}

// Processor returns the processor for the kind.
func (r *Registry) Processor(kind models.EntityKind) (Processor, error) {
	p, ok := r.processors[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported entity kind: %q", kind)
	}
	return p, nil
}

// resolvableLinks отбирает из desired-набора те GUID, цели которых
// существуют локально. Неразрешимая цель связи пропускается и логируется,
// но не проваливает страницу целиком.
func resolvableLinks(tx storage.EntityTx, logger *slog.Logger, targetKind models.EntityKind, from string, desired []string, result *ApplyResult) ([]string, error) {
	links := make([]string, 0, len(desired))
	for _, to := range desired {
		exists, err := tx.HasRecord(targetKind, to)
		if err != nil {
			return nil, fmt.Errorf("failed to look up link target %s/%s: %w", targetKind, to, err)
		}
		if !exists {
			logger.Warn("link target not found locally, skipping link",
				"target_kind", targetKind,
				"from", from,
				"to", to)
			result.SkippedLinks++
			continue
		}
		links = append(links, to)
	}
	return links, nil
}
