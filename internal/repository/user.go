package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
)

const userKeyPrefix = "user:"

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	Find(ctx context.Context, username string) (*entity.User, error)
}

type redisUserRepository struct {
	client *redis.Client
}

func NewUserRepository(client *redis.Client) UserRepository {
	return &redisUserRepository{
		client: client,
	}
}

// Create stores a new user. It fails with apperror.ErrAlreadyExists when the username is taken.
func (that *redisUserRepository) Create(ctx context.Context, user *entity.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	created, err := that.client.SetNX(ctx, userKeyPrefix+user.Username, userJSON, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set user: %w", err)
	}

	if !created {
		return fmt.Errorf("%w: user %s", apperror.ErrAlreadyExists, user.Username)
	}

	return nil
}

func (that *redisUserRepository) Find(ctx context.Context, username string) (*entity.User, error) {
	response, err := that.client.Get(ctx, userKeyPrefix+username).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user entity.User
	if err = json.Unmarshal([]byte(response), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}
