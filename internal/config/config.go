package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"

	minPort = 1024
	maxPort = 65535
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel          string `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort          string `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort        string `yaml:"socket-port" env:"SOCKET_PORT" env-default:"8080"`
	TCPPort           string `yaml:"tcp-port" env:"TCP_PORT" env-default:"7070"`
	Storage           string `yaml:"storage" env:"STORAGE" env-default:"redis"`
	Redis             Redis  `yaml:"redis"`
	SQLiteStoragePath string `yaml:"sqlite-storage-path" env:"SQLITE_STORAGE_PATH" env-default:"users.db"`
	UserDatabase      string `yaml:"user-database" env:"USER_DATABASE"`
	Hub               Hub    `yaml:"hub"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Hub struct {
	MaxRooms      int `yaml:"max-rooms" env:"HUB_MAX_ROOMS" env-default:"256"`
	MaxViolations int `yaml:"max-violations" env:"HUB_MAX_VIOLATIONS" env-default:"5"`
	OutboxSize    int `yaml:"outbox-size" env:"HUB_OUTBOX_SIZE" env-default:"256"`
}

// Load reads path and applies environment overrides.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

func (that *Config) Validate() error {
	ports := map[string]string{
		"http-port":   that.HTTPPort,
		"socket-port": that.SocketPort,
		"tcp-port":    that.TCPPort,
		"redis.port":  that.Redis.Port,
	}

	for name, value := range ports {
		port, err := strconv.Atoi(value)
		if err != nil || port < minPort || port > maxPort {
			return fmt.Errorf("%w: %s must be a port between %d and %d, got %q", ErrInvalidConfig, name, minPort, maxPort, value)
		}
	}

	switch that.Storage {
	case StorageRedis, StorageSQLite:
	default:
		return fmt.Errorf("%w: unknown storage %q", ErrInvalidConfig, that.Storage)
	}

	if that.Hub.MaxRooms <= 0 || that.Hub.MaxViolations <= 0 || that.Hub.OutboxSize <= 0 {
		return fmt.Errorf("%w: hub limits must be positive", ErrInvalidConfig)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
