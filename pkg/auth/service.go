package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/libloan/libloan/pkg/models"
	"github.com/pkg/errors"
)

// TokenExpiry is how long issued JWT tokens are valid.
const TokenExpiry = 30 * 24 * time.Hour

// JWTClaims represents the claims in a customer token.
type JWTClaims struct {
	CustomerID int    `json:"customer_id"`
	Email      string `json:"email"`
	jwt.RegisteredClaims
}

// Service issues and validates customer tokens. It knows nothing about
// storage; resolving claims to a customer row is the middleware's job.
type Service struct {
	jwtSecret []byte
}

func NewService(jwtSecret string) *Service {
	return &Service{jwtSecret: []byte(jwtSecret)}
}

// GenerateToken creates a new signed token for the customer.
func (s *Service) GenerateToken(customer *models.Customer) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		CustomerID: customer.ID,
		Email:      customer.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return signedToken, nil
}

// ValidateToken validates a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
