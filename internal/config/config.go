package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/rocketscienceinc/botarena/internal/apperror"
	"github.com/rocketscienceinc/botarena/internal/game"
)

type Config struct {
	LogLevel   string     `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTP       HTTP       `yaml:"http"`
	Tournament Tournament `yaml:"tournament"`
	Sandbox    Sandbox    `yaml:"sandbox"`
	Redis      Redis      `yaml:"redis"`
}

type HTTP struct {
	Port            string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	MaxPayloadBytes int64  `yaml:"max-payload-bytes" env:"HTTP_MAX_PAYLOAD_BYTES" env-default:"8388608"`
}

type Tournament struct {
	BoardSizes      []int `yaml:"board-sizes" env:"TOURNAMENT_BOARD_SIZES" env-default:"8,12,16"`
	Workers         int   `yaml:"workers" env:"TOURNAMENT_WORKERS" env-default:"4"`
	GameConcurrency int   `yaml:"game-concurrency" env:"TOURNAMENT_GAME_CONCURRENCY" env-default:"8"`
}

type Sandbox struct {
	CallTimeout      time.Duration `yaml:"call-timeout" env:"SANDBOX_CALL_TIMEOUT" env-default:"1s"`
	MemoryLimitPages uint32        `yaml:"memory-limit-pages" env:"SANDBOX_MEMORY_LIMIT_PAGES" env-default:"256"`
	AllocExports     []string      `yaml:"alloc-exports" env:"SANDBOX_ALLOC_EXPORTS" env-default:"alloc_wasm_memory,alloc"`
	DecideExports    []string      `yaml:"decide-exports" env:"SANDBOX_DECIDE_EXPORTS" env-default:"answer,decide"`
}

type Redis struct {
	Enabled bool   `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host    string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port    string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Path - returns CONFIG_PATH, or config.yml in the working directory when it is unset.
func Path() (string, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path, nil
	}

	baseDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	return filepath.Join(baseDir, "config.yml"), nil
}

// Load - reads the config file when it exists, then applies environment overrides.
func Load(path string) (*Config, error) {
	config := &Config{}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err = cleanenv.ReadConfig(path, config); err != nil {
			return nil, fmt.Errorf("unable to load config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to load config from environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("unable to stat config file: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	if len(that.Tournament.BoardSizes) == 0 {
		return fmt.Errorf("%w: no board sizes", apperror.ErrInvalidConfiguration)
	}

	for _, size := range that.Tournament.BoardSizes {
		if err := game.ValidateEdge(size); err != nil {
			return err
		}
	}

	if that.Tournament.Workers <= 0 {
		return fmt.Errorf("%w: tournament workers must be positive", apperror.ErrInvalidConfiguration)
	}

	if that.Tournament.GameConcurrency <= 0 {
		return fmt.Errorf("%w: game concurrency must be positive", apperror.ErrInvalidConfiguration)
	}

	if that.HTTP.MaxPayloadBytes <= 0 {
		return fmt.Errorf("%w: max payload must be positive", apperror.ErrInvalidConfiguration)
	}

	if len(that.Sandbox.AllocExports) == 0 || len(that.Sandbox.DecideExports) == 0 {
		return fmt.Errorf("%w: export names are required", apperror.ErrInvalidConfiguration)
	}

	return nil
}

// SlogLevel - maps log-level to a slog level. Unknown values fall back to info.
func (that *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(that.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
