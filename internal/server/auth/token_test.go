package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateDeviceToken(t *testing.T) {
	cfg := Config{Secret: []byte("secret"), TokenTTL: time.Hour}

	token, err := IssueDeviceToken(cfg, "device-42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateDeviceToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "device-42", claims.DeviceID)
	assert.Equal(t, "gymsync", claims.Issuer)
}

func TestIssueDeviceToken_EmptyDeviceID(t *testing.T) {
	cfg := Config{Secret: []byte("secret"), TokenTTL: time.Hour}

	_, err := IssueDeviceToken(cfg, "")
	assert.Error(t, err)
}

func TestValidateDeviceToken_Invalid(t *testing.T) {
	cfg := Config{Secret: []byte("secret"), TokenTTL: time.Hour}

	otherKey, err := IssueDeviceToken(Config{Secret: []byte("other"), TokenTTL: time.Hour}, "device-1")
	require.NoError(t, err)

	expired, err := IssueDeviceToken(Config{Secret: cfg.Secret, TokenTTL: -time.Minute}, "device-1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "wrong signing key", token: otherKey},
		{name: "expired", token: expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateDeviceToken(cfg, tt.token)
			assert.Error(t, err)
		})
	}
}
