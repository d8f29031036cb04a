// Package token validates the bearer tokens issued by the surrounding
// platform. The engine never issues sessions; it only extracts the actor.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "civicflow/pkg/domain"
	dErrors "civicflow/pkg/domain-errors"
)

// Claims are the JWT claims the engine cares about. The subject is the
// platform user ID.
type Claims struct {
	jwt.RegisteredClaims
}

// Service validates HS256 bearer tokens against the platform signing key.
type Service struct {
	signingKey []byte
}

func NewService(signingKey string) *Service {
	return &Service{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies a token, returning the actor it names.
func (s *Service) ValidateToken(tokenString string) (id.UserID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	actor, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return actor, nil
}

// IssueToken signs a token for the given actor. Used by tests and local
// development; production tokens come from the platform's identity service.
func (s *Service) IssueToken(actor id.UserID, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}
