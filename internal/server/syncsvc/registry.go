package syncsvc

import (
	"fmt"
	"log/slog"

	"github.com/iudanet/gymsync/internal/models"
	"github.com/iudanet/gymsync/internal/server/storage"
)

// Registry отображает вид сущности на его sync-сервис.
// Собирается один раз при старте; неизвестные виды отклоняются
// явной ошибкой, а не runtime-приведением типов.
type Registry struct {
	services map[models.EntityKind]*Service
}

// NewRegistry builds one sync service per supported entity kind
// over the shared storage.
func NewRegistry(store storage.SyncStorage, logger *slog.Logger) *Registry {
	services := make(map[models.EntityKind]*Service, len(models.AllKinds()))
	for _, kind := range models.AllKinds() {
		services[kind] = New(kind, store, logger.With("kind", kind))
	}
	return &Registry{services: services}
}

// Service returns the sync service for the kind.
func (r *Registry) Service(kind models.EntityKind) (*Service, error) {
	svc, ok := r.services[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported entity kind: %q", kind)
	}
	return svc, nil
}

// ServiceByName resolves a wire-level kind name into its sync service.
func (r *Registry) ServiceByName(name string) (*Service, error) {
	kind, err := models.ParseEntityKind(name)
	if err != nil {
		return nil, err
	}
	return r.Service(kind)
}
