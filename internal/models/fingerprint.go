package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// volatileFields поля конверта, исключаемые из отпечатка:
// идентификаторы и серверные метки меняются при каждой отправке
// и не влияют на смысловое содержание мутации.
var volatileFields = []string{"guid", "updated_at", "updated_seq"}

// PayloadFingerprint хеширует нормализованный payload с использованием SHA256.
// Volatile-поля удаляются перед хешированием, поэтому семантически
// одинаковые ожидающие мутации получают одинаковый отпечаток
// и распознаются как дубликаты в outbox.
func PayloadFingerprint(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("payload cannot be empty")
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", fmt.Errorf("failed to parse payload: %w", err)
	}

	for _, f := range volatileFields {
		delete(fields, f)
	}

	// json.Marshal сортирует ключи map, что дает каноничную форму
	normalized, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to normalize payload: %w", err)
	}

	hash := sha256.Sum256(normalized)

	return hex.EncodeToString(hash[:]), nil
}
