package storage

import (
	"fmt"

	"github.com/iudanet/gymsync/internal/models"
)

// ReconcileRelations приводит персистентный набор связей from -> *
// в точное соответствие desired-набору: связи, которых нет в desired,
// удаляются; отсутствующие добавляются; общие не трогаются.
// Операция идемпотентна: повторный вызов с тем же desired-набором
// не меняет состояние (неподвижная точка за один проход).
func ReconcileRelations(tx EntityTx, rel models.RelationKind, from string, desired []string) (added, removed int, err error) {
	existing, err := tx.Relations(rel, from)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read existing %s relations: %w", rel, err)
	}

	desiredSet := make(map[string]struct{}, len(desired))
	for _, to := range desired {
		desiredSet[to] = struct{}{}
	}

	// Удаляем связи, которых больше нет в desired-наборе
	for _, to := range existing {
		if _, ok := desiredSet[to]; ok {
			delete(desiredSet, to)
			continue
		}
		if err := tx.DeleteRelation(rel, from, to); err != nil {
			return added, removed, fmt.Errorf("failed to remove %s relation: %w", rel, err)
		}
		removed++
	}

	// Добавляем связи, присутствующие только в desired-наборе
	for to := range desiredSet {
		if err := tx.SetRelation(rel, from, to); err != nil {
			return added, removed, fmt.Errorf("failed to add %s relation: %w", rel, err)
		}
		added++
	}

	return added, removed, nil
}
