package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven-server/internal/auth"
	domainerrors "github.com/bookhaven/bookhaven-server/internal/errors"
	"github.com/bookhaven/bookhaven-server/internal/store"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAuthService(t *testing.T) (*AuthService, *store.Store) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "service-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})

	tokens, err := auth.NewTokenService(testKeyHex, 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	return NewAuthService(s, tokens, testLogger()), s
}

func registerTestUser(t *testing.T, svc *AuthService, email, role string) *AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), RegisterRequest{
		Email:       email,
		Password:    "correct-horse-battery",
		DisplayName: "Test User",
		Role:        role,
	})
	require.NoError(t, err)
	return resp
}

func TestRegister_IssuesTokens(t *testing.T) {
	svc, _ := setupAuthService(t)

	resp := registerTestUser(t, svc, "reader@example.com", "reader")
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.True(t, strings.HasPrefix(resp.User.ID, "usr-"))

	claims, err := svc.VerifyAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.False(t, claims.IsAuthor())
}

func TestRegister_AuthorRoleClaim(t *testing.T) {
	svc, _ := setupAuthService(t)

	resp := registerTestUser(t, svc, "author@example.com", "author")

	claims, err := svc.VerifyAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAuthor())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := setupAuthService(t)
	registerTestUser(t, svc, "reader@example.com", "reader")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:       "Reader@Example.com",
		Password:    "correct-horse-battery",
		DisplayName: "Other User",
		Role:        "reader",
	})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeAlreadyExists, domainErr.Code)
}

func TestRegister_RejectsInvalidRole(t *testing.T) {
	svc, _ := setupAuthService(t)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:       "reader@example.com",
		Password:    "correct-horse-battery",
		DisplayName: "Test User",
		Role:        "admin",
	})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
}

func TestLogin(t *testing.T) {
	svc, _ := setupAuthService(t)
	registerTestUser(t, svc, "reader@example.com", "reader")

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := setupAuthService(t)
	registerTestUser(t, svc, "reader@example.com", "reader")

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "reader@example.com",
		Password: "wrong-password-here",
	})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeInvalidCredentials, domainErr.Code)
}

func TestLogin_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	svc, _ := setupAuthService(t)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever-password",
	})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeInvalidCredentials, domainErr.Code)
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, _ := setupAuthService(t)
	registered := registerTestUser(t, svc, "reader@example.com", "reader")

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		RefreshToken: registered.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

	// The old refresh token is no longer usable
	_, err = svc.Refresh(context.Background(), RefreshRequest{
		RefreshToken: registered.RefreshToken,
	})
	require.Error(t, err)
}

func TestLogout(t *testing.T) {
	svc, _ := setupAuthService(t)
	registered := registerTestUser(t, svc, "reader@example.com", "reader")

	require.NoError(t, svc.Logout(context.Background(), registered.RefreshToken))

	_, err := svc.Refresh(context.Background(), RefreshRequest{
		RefreshToken: registered.RefreshToken,
	})
	require.Error(t, err)

	// Logging out again is harmless
	require.NoError(t, svc.Logout(context.Background(), registered.RefreshToken))
}

func TestLogoutAll(t *testing.T) {
	svc, _ := setupAuthService(t)
	registered := registerTestUser(t, svc, "reader@example.com", "reader")

	// Open a second session via login
	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "reader@example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	count, err := svc.LogoutAll(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
