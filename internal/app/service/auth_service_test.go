package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pharmacare/pharmacy-backend/internal/app/repository"
	"github.com/pharmacare/pharmacy-backend/internal/db"
	"github.com/pharmacare/pharmacy-backend/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret"

type recordingRevoker struct {
	tokenID string
	ttl     time.Duration
	err     error
}

func (r *recordingRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	r.tokenID = tokenID
	r.ttl = ttl
	return r.err
}

func setupAuthServiceTest(t *testing.T, revoker TokenRevoker) AuthService {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	return NewAuthService(repository.NewUserRepository(testDB), revoker, testJWTSecret, time.Hour)
}

func TestAuthService_Register(t *testing.T) {
	authService := setupAuthServiceTest(t, nil)

	tests := []struct {
		name     string
		email    string
		password string
		userName string
		wantErr  error
	}{
		{
			name:     "Valid registration",
			email:    "patient@example.com",
			password: "password123",
			userName: "Patient",
		},
		{
			name:     "Duplicate email",
			email:    "PATIENT@example.com",
			password: "password456",
			userName: "Another Patient",
			wantErr:  ErrEmailAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, token, err := authService.Register(tt.email, tt.password, tt.userName)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				assert.Nil(t, token)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, user)
			require.NotNil(t, token)
			assert.Equal(t, "patient@example.com", user.Email)
			assert.NotEqual(t, tt.password, user.PasswordHash)

			claims, err := util.ValidateToken(token.AccessToken, testJWTSecret)
			require.NoError(t, err)
			assert.Equal(t, user.ID, claims.UserID)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	authService := setupAuthServiceTest(t, nil)

	registered, _, err := authService.Register("patient@example.com", "password123", "Patient")
	require.NoError(t, err)

	user, token, err := authService.Login("patient@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, token.AccessToken)

	_, _, err = authService.Login("patient@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = authService.Login("nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_GetUserByID(t *testing.T) {
	authService := setupAuthServiceTest(t, nil)

	registered, _, err := authService.Register("patient@example.com", "password123", "Patient")
	require.NoError(t, err)

	user, err := authService.GetUserByID(registered.ID)
	require.NoError(t, err)
	assert.Equal(t, "Patient", user.Name)

	_, err = authService.GetUserByID(9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_Logout(t *testing.T) {
	revoker := &recordingRevoker{}
	authService := setupAuthServiceTest(t, revoker)

	_, token, err := authService.Register("patient@example.com", "password123", "Patient")
	require.NoError(t, err)
	claims, err := util.ValidateToken(token.AccessToken, testJWTSecret)
	require.NoError(t, err)

	require.NoError(t, authService.Logout(context.Background(), claims))
	assert.Equal(t, claims.ID, revoker.tokenID)
	assert.Greater(t, revoker.ttl, 59*time.Minute)

	revoker.err = errors.New("redis down")
	assert.Error(t, authService.Logout(context.Background(), claims))
}

func TestAuthService_LogoutWithoutRevoker(t *testing.T) {
	authService := setupAuthServiceTest(t, nil)
	assert.NoError(t, authService.Logout(context.Background(), &util.Claims{UserID: 1}))
}
