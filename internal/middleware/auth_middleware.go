package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/pharmacare/pharmacy-backend/internal/errors"
	"github.com/pharmacare/pharmacy-backend/pkg/util"
)

// Context keys for user information
const (
	UserIDKey      = "user_id"
	UserEmailKey   = "user_email"
	TokenClaimsKey = "token_claims"
)

// RevocationChecker reports whether a token ID was revoked by logout
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AuthMiddleware struct {
	jwtSecret string
	revoked   RevocationChecker
}

// NewAuthMiddleware builds the middleware. revoked may be nil when no
// blacklist is configured.
func NewAuthMiddleware(jwtSecret string, revoked RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		revoked:   revoked,
	}
}

// Authenticate validates the bearer token (required)
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Missing authorization header", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			log.Warn("Invalid authorization header format", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := util.ValidateToken(parts[1], m.jwtSecret)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})

			if errors.Is(err, util.ErrExpiredToken) {
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenExpired, "Session has expired, please log in again")
			} else {
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid authentication token")
			}
			c.Abort()
			return
		}

		if m.revoked != nil && claims.ID != "" {
			revoked, err := m.revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				log.Error("Failed to check token revocation", err, map[string]interface{}{
					"user_id": claims.UserID,
				})
				apperrors.InternalError(c, "")
				c.Abort()
				return
			}
			if revoked {
				log.Warn("Revoked token used", map[string]interface{}{
					"user_id": claims.UserID,
				})
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenRevoked, "Session has ended, please log in again")
				c.Abort()
				return
			}
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(TokenClaimsKey, claims)

		log.Debug("User authenticated successfully", map[string]interface{}{
			"user_id": claims.UserID,
		})

		c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(UserEmailKey)
	if !exists {
		return "", false
	}
	value, ok := email.(string)
	return value, ok
}

// GetTokenClaims returns the validated claims of the current request
func GetTokenClaims(c *gin.Context) (*util.Claims, bool) {
	claims, exists := c.Get(TokenClaimsKey)
	if !exists {
		return nil, false
	}
	value, ok := claims.(*util.Claims)
	return value, ok
}
