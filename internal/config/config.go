package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	RegistryBackend   string `env:"REGISTRY_BACKEND"   envDefault:"memory"   validate:"oneof=memory redis"`
	ScoreStore        string `env:"SCORE_STORE"        envDefault:"postgres" validate:"oneof=memory postgres"`
	StrictTransitions bool   `env:"STRICT_TRANSITIONS" envDefault:"true"`

	RedisHost   string        `env:"REDIS_HOST"    envDefault:"localhost"`
	RedisPort   uint16        `env:"REDIS_PORT"    envDefault:"6379" validate:"min=1000,max=65535"`
	RoomIdleTTL time.Duration `env:"ROOM_IDLE_TTL" envDefault:"6h" validate:"min=1s"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"classgame_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"classgame_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"classgame_db"`

	ScoreCoalesceWindow time.Duration `env:"SCORE_COALESCE_WINDOW" envDefault:"30s" validate:"gtfield=ScoreRaceWindow"`
	ScoreRaceWindow     time.Duration `env:"SCORE_RACE_WINDOW"     envDefault:"1s"  validate:"min=0"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
