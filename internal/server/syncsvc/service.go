package syncsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/gymsync/internal/models"
	"github.com/iudanet/gymsync/internal/server/storage"
	"github.com/iudanet/gymsync/pkg/api"
)

// Service обслуживает pull и push для одного вида сущностей.
// Экземпляры всех видов разделяют одно хранилище и один глобальный
// счетчик последовательности.
type Service struct {
	store  storage.SyncStorage
	logger *slog.Logger
	now    func() time.Time
	kind   models.EntityKind
}

// New creates a sync service for a single entity kind.
func New(kind models.EntityKind, store storage.SyncStorage, logger *slog.Logger) *Service {
	return &Service{
		kind:   kind,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Kind returns the entity kind this service is bound to.
func (s *Service) Kind() models.EntityKind {
	return s.kind
}

// Pull возвращает страницу записей со штампом строго после cur.
// Размер страницы зажимается в границы протокола. Если записей меньше
// запрошенного, Next равен nil; иначе Next равен штампу последней записи.
func (s *Service) Pull(ctx context.Context, cur models.Cursor, take int) (*models.Page, error) {
	take = api.ClampPageSize(take)

	items, err := s.store.ListSince(ctx, s.kind, cur, take)
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", s.kind, err)
	}

	page := &models.Page{
		ServerTime: s.now().UTC(),
		Items:      items,
	}

	// Полная страница означает, что поток может продолжаться
	if len(items) == take {
		next := items[len(items)-1].Stamp()
		page.Next = &next
	}

	s.logger.Debug("pull page served",
		"kind", s.kind,
		"cursor", cur.Token(),
		"items", len(items),
		"exhausted", page.Next == nil)

	return page, nil
}

// Push применяет батч входящих мутаций в одной транзакции.
// Каждый элемент разрешается независимо по правилам LWW; ошибка отдельного
// элемента не прерывает соседей. Сбой самой транзакции откатывает батч
// целиком, и каждый элемент отчитывается как failed.
func (s *Service) Push(ctx context.Context, items []*models.Record) (*models.PushResult, error) {
	results := make([]models.PushItemResult, len(items))

	err := s.store.Batch(ctx, func(tx storage.BatchTx) error {
		for i, item := range items {
			results[i] = s.pushOne(tx, item)
		}
		return nil
	})
	if err != nil {
		// Батч откатился: ни один элемент не применен
		s.logger.Error("push batch rolled back", "kind", s.kind, "error", err)
		for i, item := range items {
			results[i] = models.PushItemResult{
				GUID:    item.GUID,
				Status:  models.PushFailed,
				Message: "batch rolled back: " + err.Error(),
			}
		}
	}

	result := &models.PushResult{
		ServerTime: s.now().UTC(),
		Items:      results,
	}
	for _, r := range results {
		if r.Status.Terminal() {
			result.Accepted++
		} else {
			result.Failed++
		}
	}

	s.logger.Info("push batch processed",
		"kind", s.kind,
		"items", len(items),
		"accepted", result.Accepted,
		"failed", result.Failed)

	return result, nil
}

// pushOne разрешает один входящий элемент против текущего состояния хранилища.
func (s *Service) pushOne(tx storage.BatchTx, item *models.Record) models.PushItemResult {
	if item.GUID == "" {
		return models.PushItemResult{Status: models.PushFailed, Message: "missing guid"}
	}

	existing, err := tx.Get(s.kind, item.GUID)
	if err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
		return models.PushItemResult{
			GUID:    item.GUID,
			Status:  models.PushFailed,
			Message: "lookup failed: " + err.Error(),
		}
	}

	// Записи нет: tombstone пропускается, остальное вставляется
	if existing == nil {
		if item.Deleted {
			return models.PushItemResult{
				GUID:    item.GUID,
				Status:  models.PushNotFound,
				Message: "no record to delete",
			}
		}
		return s.applyItem(tx, item, nil, models.PushUpserted)
	}

	// Запись, принадлежащая серверу, не может быть изменена снизу
	if existing.Authority == models.AuthorityUpstream {
		return models.PushItemResult{
			GUID:    item.GUID,
			Status:  models.PushConflict,
			Message: "record is owned upstream",
		}
	}

	// LWW: не новее существующей - идемпотентный повтор, изменений нет
	if !item.IsNewerThan(existing) {
		return models.PushItemResult{GUID: item.GUID, Status: models.PushSkippedDuplicate}
	}

	status := models.PushUpserted
	if item.Deleted {
		status = models.PushDeleted
	}
	return s.applyItem(tx, item, existing, status)
}

// applyItem записывает мутацию с серверными штампами.
// Клиентским меткам времени для упорядочивания не доверяем:
// timestamp и sequence всегда выдает сервер.
func (s *Service) applyItem(tx storage.BatchTx, item, existing *models.Record, status models.PushStatus) models.PushItemResult {
	seq, err := tx.NextSeq()
	if err != nil {
		return models.PushItemResult{
			GUID:    item.GUID,
			Status:  models.PushFailed,
			Message: "sequence allocation failed: " + err.Error(),
		}
	}

	ts := s.now().UTC()
	// Штамп никогда не раньше существующей записи, иначе при
	// откате системных часов запись выпала бы из уже пройденных курсоров
	if existing != nil && ts.Before(existing.UpdatedAt) {
		ts = existing.UpdatedAt
	}

	authority := item.Authority
	if !authority.Valid() {
		authority = models.AuthorityBidirectional
	}

	rec := &models.Record{
		GUID:       item.GUID,
		Kind:       s.kind,
		UpdatedAt:  ts,
		UpdatedSeq: seq,
		Deleted:    item.Deleted,
		Authority:  authority,
		Payload:    item.Payload,
	}

	if err := tx.Upsert(rec); err != nil {
		return models.PushItemResult{
			GUID:    item.GUID,
			Status:  models.PushFailed,
			Message: "upsert failed: " + err.Error(),
		}
	}

	return models.PushItemResult{GUID: item.GUID, Status: status}
}
