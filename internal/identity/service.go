package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims issued by the external auth provider.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Identity struct {
	Subject string
	Display string
}

// Service only validates tokens. Issuing them is the auth provider's job.
type Service struct {
	secret []byte
}

func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

func (s *Service) ValidateToken(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	id := Identity{Subject: claims.Subject, Display: claims.Email}
	if id.Display == "" {
		id.Display = claims.Name
	}
	if id.Display == "" {
		id.Display = claims.Subject
	}
	if id.Display == "" {
		return Identity{}, fmt.Errorf("%w: no subject, email or name", ErrInvalidToken)
	}
	return id, nil
}
