package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Dhoini/workshop-relay/internal/domain"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/Dhoini/workshop-relay/pkg/res"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextUserIDKey ключ для хранения ID пользователя в контексте
	ContextUserIDKey ContextKey = "userID"
	// ContextUserEmailKey ключ для email пользователя
	ContextUserEmailKey ContextKey = "userEmail"

	authHeaderPrefix = "Bearer "
)

type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

type TokenClaims struct {
	UserEmail string `json:"email"`
	jwt.RegisteredClaims
}

type JWTMiddleware struct {
	log       *logger.Logger
	validator TokenValidator
}

func NewJWTMiddleware(log *logger.Logger, validator TokenValidator) *JWTMiddleware {
	return &JWTMiddleware{
		log:       log,
		validator: validator,
	}
}

// RequireAuth rejects requests without a valid bearer token
func (m *JWTMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.authenticate(c)
		if err != nil {
			m.handleAuthError(c, err)
			return
		}
		m.setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and lets every
// request through.
func (m *JWTMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			claims, err := m.authenticate(c)
			if err != nil {
				m.log.Debugw("Ignoring invalid optional token", "path", c.Request.URL.Path, "error", err)
			} else {
				m.setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// authenticate возвращает ошибку, обернутую в domain.ErrUnauthenticated
func (m *JWTMiddleware) authenticate(c *gin.Context) (*TokenClaims, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("%w: missing authorization token", domain.ErrUnauthenticated)
	}
	if !strings.HasPrefix(authHeader, authHeaderPrefix) {
		return nil, fmt.Errorf("%w: authorization header must use the Bearer scheme", domain.ErrUnauthenticated)
	}

	claims, err := m.validator.Validate(strings.TrimPrefix(authHeader, authHeaderPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: token validation failed: %v", domain.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: user ID (sub) missing in token", domain.ErrUnauthenticated)
	}
	return claims, nil
}

func (m *JWTMiddleware) setClaims(c *gin.Context, claims *TokenClaims) {
	c.Set(string(ContextUserIDKey), claims.Subject)
	c.Set(string(ContextUserEmailKey), claims.UserEmail)
	m.log.Debugw("User authenticated via HTTP", "userID", claims.Subject)
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, err error) {
	m.log.Warnw("HTTP Authentication failed", "path", c.Request.URL.Path, "error", err)
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error:     err.Error(),
		ErrorCode: http.StatusUnauthorized,
	}, http.StatusUnauthorized)
	c.Abort()
}

// UserIDFromContext returns the authenticated user id, empty when anonymous
func UserIDFromContext(c *gin.Context) string {
	return c.GetString(string(ContextUserIDKey))
}

// UserEmailFromContext returns the email claim of the authenticated user
func UserEmailFromContext(c *gin.Context) string {
	return c.GetString(string(ContextUserEmailKey))
}

// DefaultTokenValidator - реализация валидатора по умолчанию.
type DefaultTokenValidator struct {
	Secret []byte
}

func (v *DefaultTokenValidator) Validate(tokenString string) (*TokenClaims, error) {
	if len(v.Secret) == 0 {
		return nil, errors.New("token validation is not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, errors.New("malformed token")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.New("invalid token signature")
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, errors.New("token expired")
		default:
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}
