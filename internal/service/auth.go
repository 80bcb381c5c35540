package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
)

type userRepo interface {
	Create(ctx context.Context, user *entity.User) error
	Find(ctx context.Context, username string) (*entity.User, error)
}

type AuthService struct {
	logger *slog.Logger
	repo   userRepo
	cost   int
}

func NewAuthService(logger *slog.Logger, repo userRepo) *AuthService {
	return &AuthService{
		logger: logger.With("component", "auth"),
		repo:   repo,
		cost:   bcrypt.DefaultCost,
	}
}

// Authenticate checks password against the stored bcrypt hash. Unknown users are not an error.
func (that *AuthService) Authenticate(ctx context.Context, username, password string) (bool, error) {
	log := that.logger.With("method", "Authenticate", "username", username)

	user, err := that.repo.Find(ctx, username)
	if errors.Is(err, apperror.ErrNotFound) {
		log.Info("unknown user")
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			log.Warn("stored hash is unusable", "error", err)
		}

		return false, nil
	}

	return true, nil
}

// Register stores a new user with a hashed password.
func (that *AuthService) Register(ctx context.Context, username, password string) error {
	hash, err := HashPassword(password, that.cost)
	if err != nil {
		return err
	}

	err = that.repo.Create(ctx, &entity.User{Username: username, PasswordHash: hash})
	if errors.Is(err, apperror.ErrAlreadyExists) {
		return fmt.Errorf("%w: %s", apperror.ErrUsernameTaken, username)
	}

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	that.logger.Info("user registered", "username", username)

	return nil
}

// Import stores users whose passwords are already hashed. Existing usernames are skipped.
func (that *AuthService) Import(ctx context.Context, users []entity.User) (int, error) {
	imported := 0

	for _, user := range users {
		if _, err := bcrypt.Cost([]byte(user.PasswordHash)); err != nil {
			return imported, fmt.Errorf("user %s has no bcrypt hash: %w", user.Username, err)
		}

		err := that.repo.Create(ctx, &user)
		if errors.Is(err, apperror.ErrAlreadyExists) {
			continue
		}

		if err != nil {
			return imported, fmt.Errorf("failed to import user %s: %w", user.Username, err)
		}

		imported++
	}

	that.logger.Info("users imported", "imported", imported, "total", len(users))

	return imported, nil
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}
