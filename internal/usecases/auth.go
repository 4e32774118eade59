package usecases

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sand/restaurant-orders-app/backend/internal/apperr"
	"github.com/sand/restaurant-orders-app/backend/internal/core/ports"
	"github.com/sand/restaurant-orders-app/backend/internal/entities"
)

type UsersRepository interface {
	InsertUser(ctx context.Context, user *entities.User) error
	FindUserByEmail(ctx context.Context, email string) (*entities.User, error)
	FindUserByID(ctx context.Context, id string) (*entities.User, error)
}

const (
	minPasswordLength = 6
	bcryptCost        = 10
)

type AuthService struct {
	logger *slog.Logger

	users     UsersRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewAuthService(logger *slog.Logger, users UsersRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		logger:    logger,
		users:     users,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*entities.User, error) {
	if !strings.Contains(input.Email, "@") {
		return nil, apperr.Validation("A valid email address is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperr.Validation("Password must be at least 6 characters long")
	}
	if input.FirstName == "" {
		return nil, apperr.Validation("First name is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	user := &entities.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(input.Email),
		PasswordHash: string(hash),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		CreatedAt:    s.now().UTC(),
	}

	if err = s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, entities.ErrDuplicateEmail) {
			return nil, apperr.Conflict("A user with this email already exists.")
		}
		return nil, apperr.Internal("failed to create user", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*entities.User, string, error) {
	user, err := s.users.FindUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, "", apperr.Internal("failed to look up user", err)
	}
	if user == nil {
		return nil, "", apperr.Unauthorized("Incorrect email or password provided.")
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperr.Unauthorized("Incorrect email or password provided.")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    user.ID,
		"email": user.Email,
		"exp":   s.now().Add(s.tokenTTL).Unix(),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, "", apperr.Internal("failed to sign token", err)
	}

	return user, signed, nil
}

// ParseToken validates a bearer token and returns the user id it carries.
func (s *AuthService) ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", apperr.Unauthorized("Invalid or expired authentication token.")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.Unauthorized("Invalid or expired authentication token.")
	}

	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return "", apperr.Unauthorized("Invalid or expired authentication token.")
	}

	return userID, nil
}
