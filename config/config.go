package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds process configuration read from the environment.
type Config struct {
	Debug      bool   `env:"DEBUG" env-default:"false"`
	ListenAddr string `env:"LISTEN_ADDR" env-default:":8080"`

	Storage  StorageConfig
	Redis    RedisConfig
	Session  SessionConfig
	Feed     FeedConfig
	Board    BoardConfig
	Events   EventsConfig
	Federate FederatedConfig
}

type StorageConfig struct {
	ConnectionString string `env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	UsersTable       string `env:"USERS_TABLE" env-default:"users"`
	ImagesTable      string `env:"IMAGES_TABLE" env-default:"images"`
	ImagesContainer  string `env:"IMAGES_CONTAINER" env-default:"images"`
	EventsQueue      string `env:"EVENTS_QUEUE" env-default:"taskflow-events"`
}

type RedisConfig struct {
	ConnectionString string `env:"REDIS_CONNECTION_STRING" env-required:"true"`
}

type SessionConfig struct {
	Secret        string        `env:"SESSION_SECRET" env-required:"true"`
	Issuer        string        `env:"SESSION_ISSUER" env-default:"taskflow"`
	TTL           time.Duration `env:"SESSION_TTL" env-default:"24h"`
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL" env-default:"30m"`
	SecureCookie  bool          `env:"SESSION_SECURE_COOKIE" env-default:"true"`
}

type FeedConfig struct {
	CacheTTL      time.Duration `env:"FEED_CACHE_TTL" env-default:"5m"`
	ImageURLTTL   time.Duration `env:"IMAGE_URL_TTL" env-default:"1h"`
	MaxUploadSize int64         `env:"MAX_UPLOAD_SIZE" env-default:"10485760"`
}

type BoardConfig struct {
	IdleTTL       time.Duration `env:"BOARD_IDLE_TTL" env-default:"2h"`
	SweepInterval time.Duration `env:"BOARD_SWEEP_INTERVAL" env-default:"5m"`
}

type EventsConfig struct {
	Workers        int           `env:"EVENT_WORKERS" env-default:"4"`
	Buffer         int           `env:"EVENT_BUFFER" env-default:"256"`
	Timeout        time.Duration `env:"EVENT_TIMEOUT" env-default:"30s"`
	HandoffTimeout time.Duration `env:"EVENT_HANDOFF_TIMEOUT" env-default:"15ms"`
}

// FederatedConfig configures Google sign-in. An empty ClientID disables it.
type FederatedConfig struct {
	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
	GoogleJWKSURL  string `env:"GOOGLE_JWKS_URL" env-default:"https://www.googleapis.com/oauth2/v3/certs"`
	GoogleIssuer   string `env:"GOOGLE_ISSUER" env-default:"https://accounts.google.com"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadStorage reads only the storage settings, for tooling that does not
// serve requests.
func LoadStorage() (*StorageConfig, error) {
	cfg := new(StorageConfig)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
