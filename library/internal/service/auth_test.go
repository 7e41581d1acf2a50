package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Astemirdum/library-catalog/library/internal/errs"
	"github.com/Astemirdum/library-catalog/library/internal/repository"
	"github.com/Astemirdum/library-catalog/pkg/auth"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthService(t *testing.T, path string, ttl time.Duration) *AuthService {
	t.Helper()
	store, err := repository.NewCredentialFile(path)
	require.NoError(t, err)
	s, err := NewAuthService(context.Background(), store, auth.NewTokenManager([]byte("test-key")), "admin123", ttl, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestAuthService_LoginLogout(t *testing.T) {
	ctx := context.Background()
	s := newAuthService(t, filepath.Join(t.TempDir(), "admin.json"), 0)

	_, err := s.Login(ctx, "Admin123")
	require.True(t, errors.Is(err, errs.ErrWrongCode))

	token, err := s.Login(ctx, "admin123")
	require.NoError(t, err)

	sid, err := s.Authenticate(ctx, token)
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	require.NoError(t, s.Logout(ctx, token))
	_, err = s.Authenticate(ctx, token)
	require.True(t, errors.Is(err, errs.ErrUnauthorized))

	_, err = s.Authenticate(ctx, "forged")
	require.True(t, errors.Is(err, errs.ErrUnauthorized))
}

func TestAuthService_ChangePasswordPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "admin.json")
	s := newAuthService(t, path, 0)

	err := s.ChangePassword(ctx, "wrong", "secret")
	require.True(t, errors.Is(err, errs.ErrWrongCurrentPassword))

	err = s.ChangePassword(ctx, "admin123", "  ")
	require.True(t, errors.Is(err, errs.ErrValidation))

	require.NoError(t, s.ChangePassword(ctx, "admin123", "secret"))
	_, err = s.Login(ctx, "admin123")
	require.True(t, errors.Is(err, errs.ErrWrongCode))
	_, err = s.Login(ctx, "secret")
	require.NoError(t, err)

	// a restart keeps the changed code instead of the default
	restarted := newAuthService(t, path, 0)
	_, err = restarted.Login(ctx, "secret")
	require.NoError(t, err)
	_, err = restarted.Login(ctx, "admin123")
	require.True(t, errors.Is(err, errs.ErrWrongCode))
}

func TestAuthService_SessionTTL(t *testing.T) {
	ctx := context.Background()
	s := newAuthService(t, filepath.Join(t.TempDir(), "admin.json"), time.Hour)
	current := time.Now()
	s.clock = func() time.Time { return current }

	token, err := s.Login(ctx, "admin123")
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, token)
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	_, err = s.Authenticate(ctx, token)
	require.True(t, errors.Is(err, errs.ErrUnauthorized))
}

func TestAuthService_ConcurrentChangePasswordOneWinner(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "admin.json")
	s := newAuthService(t, path, 0)

	const n = 6
	results := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.ChangePassword(ctx, "admin123", fmt.Sprintf("code-%d", i))
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range results {
		if err == nil {
			require.Equal(t, -1, winner, "codes %d and %d both accepted", winner, i)
			winner = i
			continue
		}
		require.True(t, errors.Is(err, errs.ErrWrongCurrentPassword), "got %v", err)
	}
	require.NotEqual(t, -1, winner)

	code := fmt.Sprintf("code-%d", winner)
	_, err := s.Login(ctx, code)
	require.NoError(t, err)
	restarted := newAuthService(t, path, 0)
	_, err = restarted.Login(ctx, code)
	require.NoError(t, err)
}
