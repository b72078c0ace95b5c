package echoapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/user"
)

func newTestConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.SecretKey = "s3cr3t"
	conf.Server.JWTExpirationDelta = 5 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 24 * time.Hour
	return conf
}

func TestGetUserClaims(t *testing.T) {
	conf := newTestConfig()
	usr := user.User{ID: 7, Username: "hero", Email: "hero@test.cd", Role: &user.Role{Name: user.RoleAdmin}}

	tests := []struct {
		tokenType string
		delta     time.Duration
	}{
		{tokenType: TokenTypeAccess, delta: conf.Server.JWTExpirationDelta},
		{tokenType: TokenTypeRefresh, delta: conf.Server.JWTRefreshExpirationDelta},
	}
	for _, tt := range tests {
		t.Run(tt.tokenType, func(t *testing.T) {
			claims := GetUserClaims(conf, usr, tt.tokenType)
			assert.Equal(t, tt.tokenType, claims.TokenType)
			assert.Equal(t, 7, claims.UserID)
			assert.Equal(t, "7", claims.Subject)
			assert.Equal(t, user.RoleAdmin, claims.Role)
			assert.True(t, claims.IsAdmin)
			assert.WithinDuration(t, time.Now().Add(tt.delta), claims.ExpiresAt.Time, 2*time.Second)
		})
	}
}

func TestParseToken(t *testing.T) {
	conf := newTestConfig()
	usr := user.User{ID: 3, Username: "hero", Role: &user.Role{Name: user.RoleStudent}}

	pair, err := GenerateTokenPair(conf, usr)
	require.NoError(t, err)

	claims, err := ParseToken(conf, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	assert.Equal(t, user.RoleStudent, claims.Role)
	assert.False(t, claims.IsAdmin)

	claims, err = ParseToken(conf, pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)

	t.Run("wrong key", func(t *testing.T) {
		other := newTestConfig()
		other.SecretKey = "other"
		_, err := ParseToken(other, pair.Access)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		claims := GetUserClaims(conf, usr, TokenTypeAccess)
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		token, err := GenerateToken(conf, claims)
		require.NoError(t, err)
		_, err = ParseToken(conf, token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("other signing method", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, GetUserClaims(conf, usr, TokenTypeAccess)).SignedString([]byte(conf.SecretKey))
		require.NoError(t, err)
		_, err = ParseToken(conf, token)
		assert.Error(t, err)
	})
}
