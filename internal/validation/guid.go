package validation

import (
	"fmt"
	"regexp"
)

// GUIDPattern определяет допустимый формат GUID записи
// Канонический UUID: 8-4-4-4-12 hex-групп, регистр не важен
var GUIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ZeroGUID общий placeholder-ключ для пустых ссылок на дескриптор.
const ZeroGUID = "00000000-0000-0000-0000-000000000000"

// ValidateGUID проверяет, что guid соответствует каноническому UUID-формату.
func ValidateGUID(guid string) error {
	if guid == "" {
		return fmt.Errorf("guid cannot be empty")
	}

	if !GUIDPattern.MatchString(guid) {
		return fmt.Errorf("guid %q is not a canonical UUID", guid)
	}

	return nil
}
