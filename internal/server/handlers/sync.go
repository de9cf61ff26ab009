package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/gymsync/internal/models"
	"github.com/iudanet/gymsync/internal/server/syncsvc"
	"github.com/iudanet/gymsync/pkg/api"
)

// SyncHandler обслуживает pull и push эндпоинты репликации.
// Вид сущности приходит в пути запроса и резолвится через реестр;
// неизвестный вид отклоняется с 400.
type SyncHandler struct {
	logger   *slog.Logger
	registry *syncsvc.Registry
}

// NewSyncHandler creates a new sync handler over the service registry.
func NewSyncHandler(logger *slog.Logger, registry *syncsvc.Registry) *SyncHandler {
	return &SyncHandler{
		logger:   logger,
		registry: registry,
	}
}

// Register подключает маршруты синхронизации к mux.
func (h *SyncHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/sync/{kind}/pull", h.HandlePull)
	mux.HandleFunc("POST /api/v1/sync/{kind}/push", h.HandlePush)
}

// HandlePull обрабатывает GET /api/v1/sync/{kind}/pull?ts=...&seq=...&take=...
// Параметры курсора по умолчанию: минимально представимый момент и 0.
func (h *SyncHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	svc, err := h.registry.ServiceByName(r.PathValue("kind"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cur, err := parseCursorParams(r)
	if err != nil {
		h.logger.Warn("Invalid cursor parameters", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid cursor parameters")
		return
	}

	take := api.DefaultPageSize
	if takeStr := r.URL.Query().Get("take"); takeStr != "" {
		take, err = strconv.Atoi(takeStr)
		if err != nil {
			h.logger.Warn("Invalid take parameter", "take", takeStr, "error", err)
			h.writeError(w, http.StatusBadRequest, "invalid take parameter")
			return
		}
	}

	page, err := svc.Pull(r.Context(), cur, take)
	if err != nil {
		h.logger.Error("Pull failed", "kind", svc.Kind(), "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := api.PullResponse{
		ServerTime: page.ServerTime,
		Items:      make([]api.SyncItem, 0, len(page.Items)),
	}
	if page.Next != nil {
		resp.Next = &api.CursorRef{Ts: page.Next.Ts, Seq: page.Next.Seq}
	}
	for _, rec := range page.Items {
		resp.Items = append(resp.Items, recordToItem(rec))
	}

	h.writeJSON(w, resp)
}

// HandlePush обрабатывает POST /api/v1/sync/{kind}/push
// Принимает батч локальных мутаций и возвращает поэлементные результаты.
func (h *SyncHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	svc, err := h.registry.ServiceByName(r.PathValue("kind"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode push request", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]*models.Record, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, itemToRecord(item))
	}

	result, err := svc.Push(r.Context(), items)
	if err != nil {
		h.logger.Error("Push failed", "kind", svc.Kind(), "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := api.PushResponse{
		ServerTime: result.ServerTime,
		Accepted:   result.Accepted,
		Failed:     result.Failed,
		Items:      make([]api.PushItemResult, 0, len(result.Items)),
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, api.PushItemResult{
			GUID:    item.GUID,
			Status:  string(item.Status),
			Message: item.Message,
		})
	}

	h.writeJSON(w, resp)
}

// parseCursorParams читает курсор из query-параметров ts/seq.
func parseCursorParams(r *http.Request) (models.Cursor, error) {
	cur := models.ZeroCursor()

	if tsStr := r.URL.Query().Get("ts"); tsStr != "" {
		ts, err := time.Parse(time.RFC3339Nano, tsStr)
		if err != nil {
			return models.Cursor{}, err
		}
		cur.Ts = ts.UTC()
	}

	if seqStr := r.URL.Query().Get("seq"); seqStr != "" {
		seq, err := strconv.ParseInt(seqStr, 10, 64)
		if err != nil {
			return models.Cursor{}, err
		}
		cur.Seq = seq
	}

	return cur, nil
}

// recordToItem конвертирует запись в wire-формат
func recordToItem(rec *models.Record) api.SyncItem {
	return api.SyncItem{
		GUID:       rec.GUID,
		Kind:       string(rec.Kind),
		UpdatedAt:  rec.UpdatedAt,
		UpdatedSeq: rec.UpdatedSeq,
		Deleted:    rec.Deleted,
		Authority:  string(rec.Authority),
		Payload:    rec.Payload,
	}
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

func (h *SyncHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *SyncHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: msg})
}
