package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/stretchr/testify/require"
)

func TestHashCode(t *testing.T) {
	hash, err := auth.HashCode("admin123")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))
	require.NotContains(t, hash, "admin123")

	require.True(t, auth.VerifyCode(hash, "admin123"))
	require.False(t, auth.VerifyCode(hash, "admin124"))
	require.False(t, auth.VerifyCode("garbage", "admin123"))

	other, err := auth.HashCode("admin123")
	require.NoError(t, err)
	require.NotEqual(t, hash, other)

	_, err = auth.HashCode("")
	require.Error(t, err)
}

func TestTokenManager(t *testing.T) {
	m := auth.NewTokenManager([]byte("secret"))

	token, err := m.Issue("sess-1", 0)
	require.NoError(t, err)
	claims, err := m.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "sess-1", claims.SessionID)
	require.Equal(t, auth.RoleAdmin, claims.Role)
	require.Nil(t, claims.ExpiresAt)

	_, err = auth.NewTokenManager([]byte("other")).Parse(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = m.Parse("not.a.token")
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	expired, err := m.Issue("sess-2", -time.Minute)
	require.NoError(t, err)
	claims, err = m.Parse(expired)
	require.NoError(t, err, "non-positive ttl means no expiry")
	require.Equal(t, "sess-2", claims.SessionID)
}

func TestAuthContext(t *testing.T) {
	ctx := context.Background()
	require.False(t, auth.IsAdmin(ctx))
	require.Empty(t, auth.GetSessionID(ctx))

	ctx = auth.SetAuthContext(ctx, "sess-1", auth.RoleAdmin)
	require.True(t, auth.IsAdmin(ctx))
	require.Equal(t, "sess-1", auth.GetSessionID(ctx))
}
