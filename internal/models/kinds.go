package models

import "fmt"

// EntityKind идентифицирует один вид реплицируемых справочных данных.
type EntityKind string

// Supported entity kinds
const (
	KindDescriptor EntityKind = "descriptor"
	KindMuscle     EntityKind = "muscle"
	KindEquipment  EntityKind = "equipment"
	KindCategory   EntityKind = "category"
	KindExercise   EntityKind = "exercise"
)

// kindRanks задает порядок обработки видов: виды с меньшим рангом
// синхронизируются раньше, потому что на них ссылаются остальные.
var kindRanks = map[EntityKind]int{
	KindDescriptor: 0,
	KindMuscle:     1,
	KindEquipment:  2,
	KindCategory:   3,
	KindExercise:   4,
}

// Rank returns the dependency rank of the kind.
// Kinds with a lower rank must be pushed and pulled before their dependents.
func (k EntityKind) Rank() int {
	return kindRanks[k]
}

// Valid reports whether the kind is one of the supported entity kinds.
func (k EntityKind) Valid() bool {
	_, ok := kindRanks[k]
	return ok
}

// AllKinds returns every supported entity kind in dependency rank order.
func AllKinds() []EntityKind {
	return []EntityKind{KindDescriptor, KindMuscle, KindEquipment, KindCategory, KindExercise}
}

// ParseEntityKind converts a wire-level kind name into an EntityKind.
// Returns an error for unknown kinds instead of silently accepting them.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unsupported entity kind: %q", s)
	}
	return k, nil
}

// RelationKind идентифицирует один вид many-to-many связи между записями.
type RelationKind string

// Supported relation kinds
const (
	RelationAntagonist        RelationKind = "muscle_antagonist"
	RelationCategoryParent    RelationKind = "category_parent"
	RelationCategoryBase      RelationKind = "category_base"
	RelationExerciseMuscle    RelationKind = "exercise_muscle"
	RelationExerciseEquipment RelationKind = "exercise_equipment"
)

// AllRelationKinds returns every supported relation kind.
func AllRelationKinds() []RelationKind {
	return []RelationKind{
		RelationAntagonist,
		RelationCategoryParent,
		RelationCategoryBase,
		RelationExerciseMuscle,
		RelationExerciseEquipment,
	}
}

// Authority определяет, какая сторона репликации владеет записью.
type Authority string

const (
	// AuthorityUpstream запись принадлежит серверу, push от клиента отклоняется
	AuthorityUpstream Authority = "upstream"
	// AuthorityBidirectional запись может изменяться с обеих сторон
	AuthorityBidirectional Authority = "bidirectional"
)

// Valid reports whether the authority value is known.
func (a Authority) Valid() bool {
	return a == AuthorityUpstream || a == AuthorityBidirectional
}

// ChangeType классифицирует локальную мутацию для outbox.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Valid reports whether the change type is known.
func (c ChangeType) Valid() bool {
	return c == ChangeInsert || c == ChangeUpdate || c == ChangeDelete
}
