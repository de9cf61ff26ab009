package resolver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
	"github.com/iudanet/gymsync/internal/validation"
)

// Resolver разрешает ссылки на дескрипторы при материализации входящих
// записей. Если целевой дескриптор отсутствует локально, создается
// минимальный placeholder, чтобы ссылочная целостность не нарушалась.
// Результаты кешируются на время одного прохода синхронизации.
type Resolver struct {
	logger *slog.Logger
	cache  map[string]string
	mu     sync.Mutex
}

// New creates a descriptor resolver with an empty per-pass cache.
func New(logger *slog.Logger) *Resolver {
	return &Resolver{
		logger: logger,
		cache:  make(map[string]string),
	}
}

// Reset очищает кеш. Вызывается оркестратором в начале каждого прохода.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]string)
}

// ResolveDescriptor возвращает GUID существующего дескриптора для ссылки ref.
// Пустая ссылка разрешается в общий placeholder с нулевым GUID;
// непустая висячая ссылка порождает placeholder под собственным GUID,
// чтобы более поздний pull настоящего дескриптора лег в ту же запись.
func (r *Resolver) ResolveDescriptor(tx storage.EntityTx, ref string) (string, error) {
	target := ref
	if target == "" {
		target = validation.ZeroGUID
	}

	r.mu.Lock()
	resolved, ok := r.cache[target]
	r.mu.Unlock()
	if ok {
		return resolved, nil
	}

	exists, err := tx.HasRecord(models.KindDescriptor, target)
	if err != nil {
		return "", fmt.Errorf("failed to look up descriptor %s: %w", target, err)
	}

	if !exists {
		if err := r.seedPlaceholder(tx, target); err != nil {
			return "", err
		}
		r.logger.Warn("descriptor placeholder created",
			"guid", target,
			"empty_ref", ref == "")
	}

	r.mu.Lock()
	r.cache[target] = target
	r.mu.Unlock()

	return target, nil
}

// seedPlaceholder создает минимальную заглушку дескриптора.
// Штампы нулевые: настоящая запись с серверными штампами
// перезапишет заглушку при любом следующем pull.
func (r *Resolver) seedPlaceholder(tx storage.EntityTx, guid string) error {
	payload, err := json.Marshal(models.DescriptorPayload{Text: ""})
	if err != nil {
		return fmt.Errorf("failed to marshal placeholder payload: %w", err)
	}

	placeholder := &models.Record{
		GUID:      guid,
		Kind:      models.KindDescriptor,
		Authority: models.AuthorityUpstream,
		Payload:   payload,
	}

	if err := tx.PutRecord(placeholder); err != nil {
		return fmt.Errorf("failed to persist descriptor placeholder: %w", err)
	}

	return nil
}
