package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rocketscienceinc/tictactoe-hub/internal/entity"
)

var ErrInvalidUserDatabase = errors.New("invalid user database")

// ReadUserDatabase loads a JSON array of {"username", "password"} records where password is a bcrypt hash.
// Every record must carry exactly these two string fields.
func ReadUserDatabase(path string) ([]entity.User, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read user database: %w", err)
	}

	var records []map[string]json.RawMessage
	if err = json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s is not a JSON array of records: %w", ErrInvalidUserDatabase, path, err)
	}

	users := make([]entity.User, 0, len(records))
	for i, record := range records {
		user, err := parseUserRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrInvalidUserDatabase, i, err)
		}

		users = append(users, user)
	}

	return users, nil
}

func parseUserRecord(record map[string]json.RawMessage) (entity.User, error) {
	if len(record) != 2 {
		return entity.User{}, fmt.Errorf("expected 2 fields, got %d", len(record))
	}

	var user entity.User
	for key, target := range map[string]*string{"username": &user.Username, "password": &user.PasswordHash} {
		raw, ok := record[key]
		if !ok {
			return entity.User{}, fmt.Errorf("missing %q", key)
		}

		if err := json.Unmarshal(raw, target); err != nil {
			return entity.User{}, fmt.Errorf("%q must be a string", key)
		}

		if *target == "" {
			return entity.User{}, fmt.Errorf("%q is empty", key)
		}
	}

	return user, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("can't resolve home directory: %w", err)
	}

	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
