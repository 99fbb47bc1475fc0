package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Claims are the JWT claims issued on login. The subject is the username.
type Claims struct {
	UserID string      `json:"id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Register creates a new user with the USER role
func (s *Service) Register(ctx context.Context, fullName, username, password, email string) (*models.User, error) {
	return s.createUser(ctx, fullName, username, password, email, models.RoleUser)
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.store.Repositories().Users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", fmt.Errorf("%w: invalid credentials", utils.ErrUnauthorized)
		}
		return "", err
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: invalid credentials", utils.ErrUnauthorized)
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID.String(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWTTTL)),
		},
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.WithField("user_id", user.ID).Info("User logged in")
	return tokenString, nil
}

// ParseToken validates a token and returns the caller it identifies. The
// account is loaded on every call, so deleted users are rejected and role
// changes apply before the token expires.
func (s *Service) ParseToken(ctx context.Context, tokenString string) (*models.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrUnauthorized, err)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id claim", utils.ErrUnauthorized)
	}
	user, err := s.store.Repositories().Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s no longer exists", utils.ErrUnauthorized, userID)
		}
		return nil, err
	}
	if user.Username != claims.Subject {
		return nil, fmt.Errorf("%w: token subject does not match user", utils.ErrUnauthorized)
	}
	return &models.Principal{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

func (s *Service) createUser(ctx context.Context, fullName, username, password, email string, role models.Role) (*models.User, error) {
	fullName = strings.TrimSpace(fullName)
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if fullName == "" || username == "" || password == "" {
		return nil, fmt.Errorf("%w: full name, username and password are required", utils.ErrInvalidArgument)
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		FullName:     fullName,
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Repositories().Users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("User created")
	return user, nil
}
