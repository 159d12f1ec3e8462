package database

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserService provides business logic for user accounts and sessions
type UserService struct {
	repo      *Repository
	jwtSecret []byte
}

// NewUserService creates a new user service
func NewUserService(repo *Repository, jwtSecret string) *UserService {
	return &UserService{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
	}
}

// Authenticate looks up a user by email and issues a session token.
func (s *UserService) Authenticate(email string) (*User, string, error) {
	user, err := s.repo.GetUserByEmail(email)
	if err != nil {
		return nil, "", err
	}

	token, err := s.GenerateSessionToken(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// GenerateSessionToken generates a JWT token for the user session
func (s *UserService) GenerateSessionToken(userID string, role Role) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(24 * time.Hour).Unix(), // 24 hour expiry
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// ValidateSessionToken validates a JWT token and returns the user ID and role
func (s *UserService) ValidateSessionToken(tokenString string) (string, Role, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return "", "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		userID, ok := claims["user_id"].(string)
		if !ok {
			return "", "", fmt.Errorf("invalid token claims")
		}
		role, _ := claims["role"].(string)
		return userID, Role(role), nil
	}

	return "", "", fmt.Errorf("invalid token")
}
