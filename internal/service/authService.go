package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// Returned when no admin password hash or signing secret is configured
	ErrAdminDisabled = errors.New("admin access is not configured")
)

// AuthService authenticates the single operator account that may read
// gateway state. Credentials come from configuration, there is no user store.
type AuthService struct {
	username     string
	passwordHash []byte // bcrypt
	jwtSecret    []byte // Stored in env (JET_ADMIN_JWT_SECRET)
	jwtExpiry    time.Duration
	now          func() time.Time
}

func NewAuthService(username, passwordHash, secret string, expiry time.Duration) *AuthService {
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}

	return &AuthService{
		username:     username,
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(secret),
		jwtExpiry:    expiry,
		now:          time.Now,
	}
}

func (s *AuthService) Enabled() bool {
	return len(s.passwordHash) > 0 && len(s.jwtSecret) > 0
}

// Authenticates the operator and returns a signed JWT
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if !s.Enabled() {
		return "", ErrAdminDisabled
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1

	// Always run bcrypt so a wrong username costs the same as a wrong password
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil || !userOK {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  s.username,
		"role": "admin",
		"exp":  now.Add(s.jwtExpiry).Unix(),
		"iat":  now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// Validates a JWT token and return the claims
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	if !s.Enabled() {
		return nil, ErrAdminDisabled
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Verifying signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	if claims["role"] != "admin" {
		return nil, errors.New("token lacks admin role")
	}

	return claims, nil
}
