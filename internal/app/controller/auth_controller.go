package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pharmacare/pharmacy-backend/internal/app/model"
	"github.com/pharmacare/pharmacy-backend/internal/app/service"
	apperrors "github.com/pharmacare/pharmacy-backend/internal/errors"
	"github.com/pharmacare/pharmacy-backend/internal/middleware"
	"github.com/pharmacare/pharmacy-backend/pkg/util"
)

type AuthController struct {
	authService service.AuthService
}

func NewAuthController(authService service.AuthService) *AuthController {
	return &AuthController{
		authService: authService,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Name     string `json:"name" binding:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

type AuthResponse struct {
	User  UserResponse      `json:"user"`
	Token *util.IssuedToken `json:"token"`
}

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Provider: string(user.Provider),
	}
}

// Register handles user registration
// POST /api/auth/register
func (ctrl *AuthController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid registration request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithBindingError(c, err, "Valid email, name and a password of at least 6 characters are required")
		return
	}

	user, token, err := ctrl.authService.Register(req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyExists) {
			apperrors.Conflict(c, apperrors.AuthEmailAlreadyExists, "User already exists")
			return
		}
		log.Error("Registration failed", err, map[string]interface{}{
			"email": req.Email,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "register user")
		return
	}

	apperrors.Success(c, http.StatusCreated, "User created successfully", AuthResponse{
		User:  toUserResponse(user),
		Token: token,
	})
}

// Login handles user login
// POST /api/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid login request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.RespondWithBindingError(c, err, "Email and password are required")
		return
	}

	user, token, err := ctrl.authService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthInvalidCredentials, "Invalid email or password")
			return
		}
		log.Error("Login failed", err, map[string]interface{}{
			"email": req.Email,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "login")
		return
	}

	apperrors.Success(c, http.StatusOK, "Login successful", AuthResponse{
		User:  toUserResponse(user),
		Token: token,
	})
}

// GetMe returns current user information
// GET /api/auth/me
func (ctrl *AuthController) GetMe(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	user, err := ctrl.authService.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			apperrors.NotFound(c, apperrors.AuthUserNotFound, "User not found")
			return
		}
		log.Error("Failed to get user information", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "get user")
		return
	}

	apperrors.Success(c, http.StatusOK, "User retrieved successfully", gin.H{"user": toUserResponse(user)})
}

// Logout revokes the current token when a blacklist is configured
// POST /api/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	claims, ok := middleware.GetTokenClaims(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	if err := ctrl.authService.Logout(c.Request.Context(), claims); err != nil {
		log.Error("Failed to revoke token during logout", err, map[string]interface{}{
			"user_id": claims.UserID,
		})
		apperrors.InternalError(c, "Error logging out")
		return
	}

	apperrors.Success(c, http.StatusOK, "Logged out successfully", nil)
}
