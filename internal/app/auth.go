/**
 * @description
 * This file implements the AuthProvider: local registration and login with
 * bcrypt password hashes, and HS256 bearer tokens whose subject is the user id.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zedx/payments-service/internal/domain"
	"github.com/zedx/payments-service/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	tokenIssuer       = "payments-service"
)

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// LoginInput is the payload of a login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// AuthProvider registers users and issues and verifies their tokens.
type AuthProvider struct {
	users       store.UserRepository
	secret      []byte
	ttl         time.Duration
	creditScore int
	bcryptCost  int
	now         func() time.Time
}

// NewAuthProvider creates an AuthProvider. creditScore is the estimate stored
// for every new user.
func NewAuthProvider(users store.UserRepository, secret string, ttl time.Duration, creditScore int) *AuthProvider {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AuthProvider{
		users:       users,
		secret:      []byte(secret),
		ttl:         ttl,
		creditScore: creditScore,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// Register creates a user and returns a token for it.
func (a *AuthProvider) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if input.FirstName == "" || input.Email == "" || input.Password == "" {
		return nil, validationError("first_name, email and password are required")
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return nil, validationError("email is invalid")
	}
	if len(input.Password) < minPasswordLength {
		return nil, validationError("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), a.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: string(hash),
		IsVerified:   false,
		CreditScore:  a.creditScore,
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: user already exists", ErrConflict)
		}
		return nil, persistenceError("create user", err)
	}

	token, err := a.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=auth msg=\"user registered\" user_id=%s", user.ID)
	return &AuthResult{Token: token, User: user}, nil
}

// Login verifies credentials and returns a fresh token.
func (a *AuthProvider) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, validationError("email and password are required")
	}

	user, err := a.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return nil, persistenceError("load user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	token, err := a.IssueToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

// IssueToken signs a token for userID.
func (a *AuthProvider) IssueToken(userID uuid.UUID) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token and returns its user id.
func (a *AuthProvider) ParseToken(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid subject", ErrUnauthorized)
	}
	return userID, nil
}
