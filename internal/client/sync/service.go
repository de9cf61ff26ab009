package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	clientapi "github.com/iudanet/gymsync/internal/client/api"
	"github.com/iudanet/gymsync/internal/client/processor"
	"github.com/iudanet/gymsync/internal/client/resolver"
	"github.com/iudanet/gymsync/internal/client/storage"
	"github.com/iudanet/gymsync/internal/models"
	"github.com/iudanet/gymsync/pkg/api"
)

//go:generate go tool moq -out service_mock.go . Service

// Service определяет интерфейс оркестратора синхронизации.
type Service interface {
	// Seed выполняет полную первичную синхронизацию всех видов сущностей.
	Seed(ctx context.Context) (*Result, error)

	// Delta выполняет инкрементальную синхронизацию от сохраненных курсоров.
	// overrides позволяет явно задать стартовый курсор для отдельных видов.
	Delta(ctx context.Context, overrides map[models.EntityKind]models.Cursor) (*Result, error)

	// Status возвращает текущее состояние синхронизации и размер очереди.
	Status(ctx context.Context) (*Status, error)
}

// Result агрегированный результат Seed или Delta прохода.
type Result struct {
	Skipped      bool // Skipped seed уже выполнен, проход не запускался
	Kinds        int  // Kinds сколько видов сущностей обработано
	Pages        int  // Pages сколько страниц получено
	Pulled       int  // Pulled сколько записей получено
	Applied      int  // Applied сколько записей применено
	SkippedItems int  // SkippedItems записи с невалидным payload
	SkippedLinks int  // SkippedLinks связи с неразрешимой целью
}

// Status текущее состояние синхронизации партиции.
type Status struct {
	State         *models.SyncState
	PendingOutbox int
}

// service orchestrates pull-and-apply across all entity kinds
type service struct {
	client     clientapi.ClientAPI
	processors *processor.Registry
	res        *resolver.Resolver
	states     storage.StateStorage
	outbox     storage.OutboxStorage
	logger     *slog.Logger
	partition  string
	pageSize   int
	seedFlight singleflight.Group
}

// NewService creates the sync orchestrator.
func NewService(
	client clientapi.ClientAPI,
	processors *processor.Registry,
	res *resolver.Resolver,
	states storage.StateStorage,
	outboxStore storage.OutboxStorage,
	logger *slog.Logger,
) Service {
	return &service{
		client:     client,
		processors: processors,
		res:        res,
		states:     states,
		outbox:     outboxStore,
		logger:     logger,
		partition:  models.DefaultPartition,
		pageSize:   api.DefaultPageSize,
	}
}

// Seed выполняет полную синхронизацию с нулевых курсоров.
// Повторный вызов при идущем seed ждет тот же проход (single-flight),
// а не запускает дубликат. SeedCompleted выставляется только после
// успеха всех видов; при сбое следующий запуск начинает seed заново.
func (s *service) Seed(ctx context.Context) (*Result, error) {
	v, err, shared := s.seedFlight.Do("seed", func() (any, error) {
		return s.runSeed(ctx)
	})
	if shared {
		s.logger.Info("joined in-flight seed")
	}
	if v == nil {
		return nil, err
	}
	return v.(*Result), err
}

func (s *service) runSeed(ctx context.Context) (*Result, error) {
	state, err := s.loadOrCreateState(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	// Из состояния Seeded выполняются только Delta-проходы
	if state.SeedCompleted {
		s.logger.Info("seed already completed, skipping", "seed_version", state.SeedVersion)
		result.Skipped = true
		return result, nil
	}

	state.SeedInProgress = true
	state.ResetCursors()
	if err := s.states.SaveSyncState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist seed start: %w", err)
	}

	s.logger.Info("seed started", "partition", state.Partition)
	s.res.Reset()

	for _, kind := range models.AllKinds() {
		if err := s.syncKind(ctx, state, kind, models.ZeroCursor(), result); err != nil {
			// Сбой любого вида: seed остается незавершенным,
			// следующий запуск повторит его с нуля
			state.SeedInProgress = false
			if serr := s.states.SaveSyncState(ctx, state); serr != nil {
				s.logger.Error("failed to persist seed failure", "error", serr)
			}
			return result, fmt.Errorf("seed failed on kind %s: %w", kind, err)
		}
		result.Kinds++
	}

	state.SeedCompleted = true
	state.SeedInProgress = false
	state.SeedVersion++
	state.LastSeedAt = time.Now().UTC()
	if err := s.states.SaveSyncState(ctx, state); err != nil {
		return result, fmt.Errorf("failed to persist seed completion: %w", err)
	}

	s.logger.Info("seed completed",
		"kinds", result.Kinds,
		"pages", result.Pages,
		"pulled", result.Pulled,
		"applied", result.Applied)

	return result, nil
}

// Delta выполняет инкрементальный проход от сохраненных курсоров.
// Курсор сохраняется после каждой страницы: сбой посреди прохода
// теряет не больше одной незакоммиченной страницы прогресса.
func (s *service) Delta(ctx context.Context, overrides map[models.EntityKind]models.Cursor) (*Result, error) {
	state, err := s.loadOrCreateState(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	s.res.Reset()

	for _, kind := range models.AllKinds() {
		cur, ok := overrides[kind]
		if !ok {
			cur, err = state.Cursor(kind)
			if err != nil {
				return result, err
			}
		}

		if err := s.syncKind(ctx, state, kind, cur, result); err != nil {
			return result, fmt.Errorf("delta failed on kind %s: %w", kind, err)
		}
		result.Kinds++
	}

	state.LastDeltaAt = time.Now().UTC()
	if err := s.states.SaveSyncState(ctx, state); err != nil {
		return result, fmt.Errorf("failed to persist delta completion: %w", err)
	}

	s.logger.Info("delta completed",
		"kinds", result.Kinds,
		"pages", result.Pages,
		"pulled", result.Pulled,
		"applied", result.Applied)

	return result, nil
}

// Status возвращает состояние синхронизации и количество ожидающих
// отправки локальных мутаций.
func (s *service) Status(ctx context.Context) (*Status, error) {
	state, err := s.loadOrCreateState(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := s.outbox.CountUnsent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending outbox entries: %w", err)
	}

	return &Status{State: state, PendingOutbox: pending}, nil
}

// syncKind тянет страницы одного вида от cur до исчерпания потока.
// Страница N+1 не запрашивается, пока страница N не применена durable
// и ее курсор не сохранен.
func (s *service) syncKind(ctx context.Context, state *models.SyncState, kind models.EntityKind, cur models.Cursor, result *Result) error {
	proc, err := s.processors.Processor(kind)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := s.client.Pull(ctx, kind, cur, s.pageSize)
		if err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}
		result.Pages++
		result.Pulled += len(resp.Items)

		if len(resp.Items) > 0 {
			items := make([]*models.Record, 0, len(resp.Items))
			for _, item := range resp.Items {
				items = append(items, itemToRecord(item))
			}

			applied, err := proc.Apply(ctx, items)
			if err != nil {
				return fmt.Errorf("apply failed: %w", err)
			}
			result.Applied += applied.Applied
			result.SkippedItems += applied.SkippedItems
			result.SkippedLinks += applied.SkippedLinks

			// Курсор двигается только после полного коммита страницы
			if resp.Next != nil {
				cur = models.Cursor{Ts: resp.Next.Ts, Seq: resp.Next.Seq}
			} else {
				cur = items[len(items)-1].Stamp()
			}
			state.SetCursor(kind, cur)
			state.UpstreamSnapshot = resp.ServerTime
			if err := s.states.SaveSyncState(ctx, state); err != nil {
				return fmt.Errorf("failed to persist cursor: %w", err)
			}
		}

		// Нет следующего курсора - поток этого вида исчерпан
		if resp.Next == nil {
			return nil
		}
	}
}

// loadOrCreateState загружает состояние партиции, создавая его при первом запуске.
func (s *service) loadOrCreateState(ctx context.Context) (*models.SyncState, error) {
	state, err := s.states.GetSyncState(ctx, s.partition)
	if err != nil {
		if errors.Is(err, storage.ErrStateNotFound) {
			return models.NewSyncState(s.partition), nil
		}
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	return state, nil
}

// itemToRecord конвертирует wire-формат в запись
func itemToRecord(item api.SyncItem) *models.Record {
	return &models.Record{
		GUID:       item.GUID,
		Kind:       models.EntityKind(item.Kind),
		UpdatedAt:  item.UpdatedAt,
		UpdatedSeq: item.UpdatedSeq,
		Deleted:    item.Deleted,
		Authority:  models.Authority(item.Authority),
		Payload:    item.Payload,
	}
}
