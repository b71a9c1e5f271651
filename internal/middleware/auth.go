// Package middleware provides authentication, logging, metrics, tracing and
// rate limiting middleware for the application.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"pettit/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Token validation failures.
var (
	ErrMissingToken  = errors.New("authorization required")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrInvalidIssuer = errors.New("invalid token issuer")
	ErrInvalidAud    = errors.New("invalid token audience")
	ErrInvalidSub    = errors.New("invalid subject claim")
)

// TokenVerifier validates bearer tokens minted by the identity service.
// Issuer and Audience are only enforced when non-empty.
type TokenVerifier struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// NewTokenVerifier builds a verifier for HMAC-signed tokens.
func NewTokenVerifier(secret, issuer, audience string) *TokenVerifier {
	return &TokenVerifier{Secret: []byte(secret), Issuer: issuer, Audience: audience}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// UserID parses and validates tokenString and returns the user ID in its subject claim.
func (v *TokenVerifier) UserID(tokenString string) (uint, error) {
	if tokenString == "" {
		return 0, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return v.Secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	if v.Issuer != "" {
		if issuer, _ := claims.GetIssuer(); issuer != v.Issuer {
			return 0, ErrInvalidIssuer
		}
	}
	if v.Audience != "" {
		aud, _ := claims.GetAudience()
		found := false
		for _, a := range aud {
			if a == v.Audience {
				found = true
				break
			}
		}
		if !found {
			return 0, ErrInvalidAud
		}
	}

	// Subject claim per RFC 7519
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, ErrInvalidSub
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrInvalidSub
	}
	return uint(userID), nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's user ID in c.Locals("userID").
func RequireAuth(v *TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := v.UserID(BearerToken(c.Get("Authorization")))
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, ErrMissingToken) {
				msg = "Authorization required"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}

		setIdentity(c, userID)
		return c.Next()
	}
}

// OptionalAuth records the caller's identity when a valid token is present
// and lets anonymous requests through.
func OptionalAuth(v *TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, err := v.UserID(BearerToken(c.Get("Authorization"))); err == nil {
			setIdentity(c, userID)
		}
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
	c.SetUserContext(ctx)
}
