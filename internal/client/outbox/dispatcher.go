package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	clientapi "github.com/iudanet/gymsync/internal/client/api"
	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
	"github.com/iudanet/gymsync/pkg/api"
)

// DefaultBatchSize максимальное число элементов очереди за один Dispatch.
const DefaultBatchSize = 200

// DefaultRetention сколько хранятся отправленные элементы до очистки.
const DefaultRetention = 7 * 24 * time.Hour

// Dispatcher дренирует очередь исходящих мутаций: группирует по виду
// сущности в порядке зависимостей, отправляет push-конверты и помечает
// элементы отправленными только по терминальному ответу сервера.
type Dispatcher struct {
	outbox    storage.OutboxStorage
	client    clientapi.ClientAPI
	logger    *slog.Logger
	now       func() time.Time
	batchSize int
	retention time.Duration
}

// NewDispatcher creates the outbox dispatcher.
func NewDispatcher(outboxStore storage.OutboxStorage, client clientapi.ClientAPI, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		outbox:    outboxStore,
		client:    client,
		logger:    logger,
		now:       time.Now,
		batchSize: DefaultBatchSize,
		retention: DefaultRetention,
	}
}

// DispatchResult агрегированный результат одной попытки отправки.
type DispatchResult struct {
	FirstError string // FirstError сообщение первой групповой ошибки
	Attempted  int    // Attempted сколько элементов вошло в попытку
	Sent       int    // Sent сколько помечено отправленными
	Retained   int    // Retained осталось в очереди (conflict/failed)
	Dropped    int    // Dropped удалено как структурно невалидные
	FailedRPC  int    // FailedRPC сколько групп не доехало до сервера
	Offline    bool   // Offline сервер недоступен, попытка была no-op
}

// Dispatch выполняет одну попытку отправки очереди.
// Без связи с сервером - no-op: ни один элемент не помечается
// отправленным. Сбой отдельной группы не мешает остальным группам.
func (d *Dispatcher) Dispatch(ctx context.Context) (*DispatchResult, error) {
	result := &DispatchResult{}

	// Проба доступности: без сети вся попытка - one no-op failure
	if err := d.client.Ping(ctx); err != nil {
		result.Offline = true
		d.logger.Warn("dispatch skipped, server unreachable", "error", err)
		return result, fmt.Errorf("no connectivity: %w", err)
	}

	entries, err := d.outbox.ListUnsent(ctx, d.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to read outbox: %w", err)
	}
	result.Attempted = len(entries)
	if len(entries) == 0 {
		return result, nil
	}

	// Невалидные при drain элементы удаляются, а не повторяются вечно
	valid := make([]*models.OutboxEntry, 0, len(entries))
	var invalidIDs []string
	for _, entry := range entries {
		if verr := entry.Validate(); verr != nil {
			d.logger.Warn("discarding invalid outbox entry", "id", entry.ID, "error", verr)
			invalidIDs = append(invalidIDs, entry.ID)
			continue
		}
		valid = append(valid, entry)
	}
	if len(invalidIDs) > 0 {
		if err := d.outbox.Delete(ctx, invalidIDs); err != nil {
			return result, fmt.Errorf("failed to drop invalid entries: %w", err)
		}
		result.Dropped = len(invalidIDs)
	}

	// Группировка по виду; внутри вида порядок возникновения сохранен
	groups := make(map[models.EntityKind][]*models.OutboxEntry)
	for _, entry := range valid {
		groups[entry.Kind] = append(groups[entry.Kind], entry)
	}

	// Виды обходятся в порядке зависимостей: дескрипторы раньше зависимых
	for _, kind := range models.AllKinds() {
		group, ok := groups[kind]
		if !ok {
			continue
		}

		if err := d.dispatchGroup(ctx, kind, group, result); err != nil {
			result.FailedRPC++
			if result.FirstError == "" {
				result.FirstError = err.Error()
			}
			d.logger.Error("push group failed, entries remain queued",
				"kind", kind,
				"entries", len(group),
				"error", err)

			// Отмена - мягкий сбой: уже подтвержденные группы
			// остаются помеченными, остальные пойдут в следующий раз
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
		}
	}

	// Заодно чистим давно отправленные элементы
	if pruned, err := d.outbox.PruneSent(ctx, d.now().Add(-d.retention)); err != nil {
		d.logger.Warn("failed to prune sent entries", "error", err)
	} else if pruned > 0 {
		d.logger.Debug("pruned sent outbox entries", "count", pruned)
	}

	if result.FailedRPC > 0 {
		return result, fmt.Errorf("dispatch incomplete: %d group(s) failed, first error: %s", result.FailedRPC, result.FirstError)
	}

	return result, nil
}

// dispatchGroup отправляет один push-конверт и помечает элементы
// по поэлементным результатам сервера.
func (d *Dispatcher) dispatchGroup(ctx context.Context, kind models.EntityKind, group []*models.OutboxEntry, result *DispatchResult) error {
	req := api.PushRequest{
		ClientTime: d.now().UTC(),
		Items:      make([]api.SyncItem, 0, len(group)),
	}
	for _, entry := range group {
		var item api.SyncItem
		if err := json.Unmarshal(entry.Payload, &item); err != nil {
			return fmt.Errorf("failed to decode queued payload %s: %w", entry.ID, err)
		}
		req.Items = append(req.Items, item)
	}

	resp, err := d.client.Push(ctx, kind, req)
	if err != nil {
		return err
	}
	if len(resp.Items) != len(group) {
		return fmt.Errorf("server returned %d results for %d items", len(resp.Items), len(group))
	}

	// Терминальный статус закрывает элемент; conflict и failed
	// остаются в очереди до следующей попытки
	var sentIDs []string
	for i, itemResult := range resp.Items {
		status := models.PushStatus(itemResult.Status)
		if status.Terminal() {
			sentIDs = append(sentIDs, group[i].ID)
			continue
		}
		result.Retained++
		d.logger.Warn("push item not accepted",
			"kind", kind,
			"guid", itemResult.GUID,
			"status", itemResult.Status,
			"message", itemResult.Message)
	}

	if err := d.outbox.MarkSent(ctx, sentIDs); err != nil {
		return fmt.Errorf("failed to mark entries sent: %w", err)
	}
	result.Sent += len(sentIDs)

	d.logger.Info("push group dispatched",
		"kind", kind,
		"entries", len(group),
		"sent", len(sentIDs),
		"accepted", resp.Accepted,
		"failed", resp.Failed)

	return nil
}
