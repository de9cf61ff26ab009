package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DeviceClaims представляет JWT claims устройства-реплики.
// Устройства получают долгоживущий токен при провижининге;
// отдельного логина у системы нет.
type DeviceClaims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// Config содержит конфигурацию для выпуска и проверки токенов
type Config struct {
	Secret   []byte
	TokenTTL time.Duration
}

// IssueDeviceToken создает новый JWT токен для устройства
func IssueDeviceToken(cfg Config, deviceID string) (string, error) {
	if deviceID == "" {
		return "", fmt.Errorf("device id cannot be empty")
	}

	now := time.Now()

	claims := DeviceClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "gymsync",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateDeviceToken валидирует и парсит JWT токен устройства
func ValidateDeviceToken(cfg Config, tokenString string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.DeviceID == "" {
		return nil, fmt.Errorf("token has no device id")
	}

	return claims, nil
}
