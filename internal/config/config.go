package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process-level settings. Per-game settings live in the
// session configuration supplied at start time.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// BeaconPort is the UDP port for LAN discovery beacons.
	BeaconPort int `env:"BEACON_PORT" envDefault:"8829"`

	// MaxPlayers limits the roster size. Negative means no limit.
	MaxPlayers int `env:"MAX_PLAYERS" envDefault:"8"`

	WebsocketReadLimit int64 `env:"WEBSOCKET_READ_LIMIT" envDefault:"4096"`

	// JoinRateLimit bounds join attempts per remote address within
	// JoinRateWindow.
	JoinRateLimit  int           `env:"JOIN_RATE_LIMIT" envDefault:"10"`
	JoinRateWindow time.Duration `env:"JOIN_RATE_WINDOW" envDefault:"1m"`

	// TokenSecret salts the per-session rejoin token key.
	TokenSecret string `env:"TOKEN_SECRET"`

	// QuestionsDir overrides the embedded question set.
	QuestionsDir string `env:"QUESTIONS_DIR"`

	// RedisAddr enables the Redis result store when set.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Load reads an optional .env file, then parses the environment.
// A missing .env file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
