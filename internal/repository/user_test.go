package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
	"github.com/rocketscienceinc/tictactoe-hub/testing/suite"
)

func TestUserRepository_Create(t *testing.T) {
	t.Run("Create_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		userRepo := NewUserRepository(st.Storage)

		// Given: a new user
		user := &entity.User{Username: "alice", PasswordHash: "$2a$10$hash"}

		// When: Create is called
		err := userRepo.Create(ctx, user)

		// Then: the user can be found again
		require.NoError(t, err)

		stored, err := userRepo.Find(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user, stored)
	})

	t.Run("Create_AlreadyExists", func(t *testing.T) {
		ctx, st := suite.New(t)

		userRepo := NewUserRepository(st.Storage)
		require.NoError(t, userRepo.Create(ctx, &entity.User{Username: "alice", PasswordHash: "first"}))

		// When: the same username is created again
		err := userRepo.Create(ctx, &entity.User{Username: "alice", PasswordHash: "second"})

		// Then: the first record is kept
		require.ErrorIs(t, err, apperror.ErrAlreadyExists)

		stored, err := userRepo.Find(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "first", stored.PasswordHash)
	})
}

func TestUserRepository_Find(t *testing.T) {
	ctx, st := suite.New(t)

	userRepo := NewUserRepository(st.Storage)

	// When: Find is called for an unknown username
	user, err := userRepo.Find(ctx, "nobody")

	// Then: ErrNotFound is returned
	require.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Nil(t, user)
}
