package service

import (
	"context"
	"errors"
	"time"

	"github.com/pharmacare/pharmacy-backend/internal/app/model"
	"github.com/pharmacare/pharmacy-backend/internal/app/repository"
	"github.com/pharmacare/pharmacy-backend/pkg/logger"
	"github.com/pharmacare/pharmacy-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// TokenRevoker remembers logged-out tokens until they expire
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
}

type AuthService interface {
	Register(email, password, name string) (*model.User, *util.IssuedToken, error)
	Login(email, password string) (*model.User, *util.IssuedToken, error)
	GetUserByID(id uint) (*model.User, error)
	Logout(ctx context.Context, claims *util.Claims) error
}

type authService struct {
	userRepo  repository.UserRepository
	revoker   TokenRevoker
	jwtSecret string
	jwtExpiry time.Duration
}

// NewAuthService builds the auth service. revoker may be nil, in which case
// logout is stateless and tokens stay valid until they expire.
func NewAuthService(
	userRepo repository.UserRepository,
	revoker TokenRevoker,
	jwtSecret string,
	jwtExpiry time.Duration,
) AuthService {
	return &authService{
		userRepo:  userRepo,
		revoker:   revoker,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

func (s *authService) Register(email, password, name string) (*model.User, *util.IssuedToken, error) {
	logger.Info("Attempting user registration", map[string]interface{}{
		"email": email,
		"name":  name,
	})

	existingUser, err := s.userRepo.FindByEmail(email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing user", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}
	if existingUser != nil {
		logger.Warn("Registration failed: email already exists", map[string]interface{}{
			"email": email,
		})
		return nil, nil, ErrEmailAlreadyExists
	}

	hashedPassword, err := util.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		Provider:     model.ProviderLocal,
	}
	if err := s.userRepo.Create(user); err != nil {
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}

	token, err := util.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtExpiry)
	if err != nil {
		logger.Error("Failed to generate token", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, err
	}

	logger.Info("User registered successfully", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	return user, token, nil
}

func (s *authService) Login(email, password string) (*model.User, *util.IssuedToken, error) {
	logger.Info("Login attempt", map[string]interface{}{
		"email": email,
	})

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Login failed: user not found", map[string]interface{}{
				"email": email,
			})
			return nil, nil, ErrInvalidCredentials
		}
		logger.Error("Failed to find user", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}

	if !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: invalid password", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, ErrInvalidCredentials
	}

	token, err := util.GenerateToken(user.ID, user.Email, s.jwtSecret, s.jwtExpiry)
	if err != nil {
		logger.Error("Failed to generate token", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, err
	}

	logger.Info("User logged in successfully", map[string]interface{}{
		"user_id": user.ID,
	})
	return user, token, nil
}

func (s *authService) GetUserByID(id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("User not found", map[string]interface{}{
				"user_id": id,
			})
			return nil, ErrUserNotFound
		}
		logger.Error("Failed to fetch user", err, map[string]interface{}{
			"user_id": id,
		})
		return nil, err
	}
	return user, nil
}

func (s *authService) Logout(ctx context.Context, claims *util.Claims) error {
	if s.revoker == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		logger.Error("Failed to revoke token on logout", err, map[string]interface{}{
			"user_id": claims.UserID,
		})
		return err
	}

	logger.Info("User logged out", map[string]interface{}{
		"user_id": claims.UserID,
	})
	return nil
}
