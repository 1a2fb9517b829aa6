package notes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/monitoring"
)

type contextKey string

// userIDContextKey carries the authenticated provider ID through the request
const userIDContextKey contextKey = "user_id"

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator implements JWT token validation
type TokenValidator struct {
	jwtSecret []byte
	issuer    string
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(secret, issuer string) *TokenValidator {
	return &TokenValidator{
		jwtSecret: []byte(secret),
		issuer:    issuer,
	}
}

// ValidateJWT validates a JWT token and returns the authenticated user ID
func (tv *TokenValidator) ValidateJWT(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return 0, fmt.Errorf("token expired")
	}

	if tv.issuer != "" && claims.Issuer != tv.issuer {
		return 0, fmt.Errorf("unexpected token issuer")
	}

	subject := claims.UserID
	if subject == "" {
		subject = claims.Subject
	}

	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("token carries no usable user ID")
	}

	return userID, nil
}

// AuthMiddleware resolves the caller's identity from either the X-User-ID
// header set by a trusted gateway or a Bearer JWT, and stores it in the
// request context. Requests without an identity are rejected.
type AuthMiddleware struct {
	validator *TokenValidator
	logger    *logger.Logger
	metrics   *monitoring.MetricsCollector
}

// NewAuthMiddleware creates new authentication middleware
func NewAuthMiddleware(validator *TokenValidator, log *logger.Logger, metrics *monitoring.MetricsCollector) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    log,
		metrics:   metrics,
	}
}

// Middleware wraps a handler with authentication
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, method, err := a.resolveIdentity(r)
		if err != nil {
			if a.metrics != nil {
				a.metrics.RecordAuthAttempt(method, "denied")
			}
			a.logger.WithError(err).WithField("path", r.URL.Path).Warn("Authentication failed")
			http.Error(w, `{"error":{"code":"unauthorized","message":"authentication required"}}`, http.StatusUnauthorized)
			return
		}

		if a.metrics != nil {
			a.metrics.RecordAuthAttempt(method, "ok")
		}
		a.logger.WithUserID(strconv.FormatInt(userID, 10)).WithField("method", method).Debug("Resolved caller identity")

		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthMiddleware) resolveIdentity(r *http.Request) (int64, string, error) {
	if header := r.Header.Get("X-User-ID"); header != "" {
		userID, err := strconv.ParseInt(header, 10, 64)
		if err != nil || userID <= 0 {
			return 0, "header", fmt.Errorf("malformed X-User-ID header")
		}
		return userID, "header", nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return 0, "none", fmt.Errorf("no credentials supplied")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return 0, "bearer", fmt.Errorf("malformed Authorization header")
	}

	userID, err := a.validator.ValidateJWT(tokenString)
	if err != nil {
		return 0, "bearer", err
	}

	return userID, "bearer", nil
}

// UserIDFromContext extracts the authenticated provider ID from the context
func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}
