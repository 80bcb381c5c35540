package testutil

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/tictactoe-hub/internal/apperror"
)

// StaticAuth is an in-memory credential store with plain text passwords.
type StaticAuth struct {
	mu    sync.Mutex
	users map[string]string
}

func NewStaticAuth(users map[string]string) *StaticAuth {
	copied := make(map[string]string, len(users))
	for username, password := range users {
		copied[username] = password
	}

	return &StaticAuth{users: copied}
}

func (that *StaticAuth) Authenticate(_ context.Context, username, password string) (bool, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored, ok := that.users[username]

	return ok && stored == password, nil
}

func (that *StaticAuth) Register(_ context.Context, username, password string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.users[username]; ok {
		return apperror.ErrUsernameTaken
	}

	that.users[username] = password

	return nil
}
