package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
	"github.com/iudanet/gymsync/internal/validation"
	"github.com/iudanet/gymsync/pkg/api"
)

// Capture наблюдает локальные мутации и ставит их в durable-очередь.
// Подключается к пути записи локального хранилища как хук изменений.
// Ошибки захвата логируются и не проваливают локальное сохранение.
type Capture struct {
	outbox storage.OutboxStorage
	logger *slog.Logger
	now    func() time.Time
}

// NewCapture creates the outbox capture.
func NewCapture(outboxStore storage.OutboxStorage, logger *slog.Logger) *Capture {
	return &Capture{
		outbox: outboxStore,
		logger: logger,
		now:    time.Now,
	}
}

// Hook возвращает функцию для регистрации в локальном хранилище.
func (c *Capture) Hook() storage.ChangeHook {
	return c.OnChange
}

// OnChange обрабатывает одну закоммиченную локальную мутацию:
// строит нормализованный payload, считает отпечаток, отбрасывает
// структурно невалидные изменения и дубликаты ожидающих записей.
func (c *Capture) OnChange(ctx context.Context, ch storage.Change) {
	entry, err := c.buildEntry(ch)
	if err != nil {
		c.logger.Warn("dropping invalid local change", "error", err)
		return
	}

	// Очередь не копит одинаковые намерения для одного net-изменения
	dup, err := c.outbox.HasPendingDuplicate(ctx, entry.Kind, entry.EntityGUID, entry.Change, entry.Fingerprint)
	if err != nil {
		c.logger.Error("failed to check outbox duplicates", "error", err)
		return
	}
	if dup {
		c.logger.Debug("identical pending change already queued, skipping",
			"kind", entry.Kind,
			"guid", entry.EntityGUID,
			"change", entry.Change)
		return
	}

	if err := c.outbox.Enqueue(ctx, entry); err != nil {
		c.logger.Error("failed to enqueue outbox entry", "error", err)
		return
	}

	c.logger.Debug("local change captured",
		"kind", entry.Kind,
		"guid", entry.EntityGUID,
		"change", entry.Change)
}

// buildEntry строит элемент очереди из закоммиченного изменения.
func (c *Capture) buildEntry(ch storage.Change) (*models.OutboxEntry, error) {
	if ch.Record == nil {
		return nil, fmt.Errorf("change without a record")
	}
	if err := validation.ValidateGUID(ch.Record.GUID); err != nil {
		return nil, fmt.Errorf("change has invalid guid: %w", err)
	}

	// Нормализованный payload - ровно тот JSON, что уйдет в push-запросе
	item := api.SyncItem{
		GUID:       ch.Record.GUID,
		Kind:       string(ch.Record.Kind),
		UpdatedAt:  ch.Record.UpdatedAt,
		UpdatedSeq: ch.Record.UpdatedSeq,
		Deleted:    ch.Record.Deleted,
		Authority:  string(ch.Record.Authority),
		Payload:    ch.Record.Payload,
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync item: %w", err)
	}

	fingerprint, err := models.PayloadFingerprint(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint payload: %w", err)
	}

	entry := &models.OutboxEntry{
		ID:          uuid.New().String(),
		Kind:        ch.Record.Kind,
		EntityGUID:  ch.Record.GUID,
		Change:      ch.Change,
		Payload:     payload,
		Fingerprint: fingerprint,
		OccurredAt:  c.now().UTC(),
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}
