package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "development"
	EnvProd  = "production"

	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	localJWTSecret = "changeme"
)

var defaultOrigins = []string{"http://localhost:3000", "http://localhost:3001"}

type Config struct {
	Env      string `env:"ENV,default=local"`
	Port     int    `env:"PORT,default=4000"`
	GRPCPort int    `env:"GRPC_PORT,default=50051"`

	DBURL         string `env:"DB_URL"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBName        string `env:"DB_NAME,default=kaizen"`
	StorageDriver string `env:"STORAGE_DRIVER,default=mongo"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h"`

	UploadDir      string `env:"UPLOAD_DIR,default=uploads"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES,default=5242880"`

	CORSOrigins        string `env:"CORS_ORIGINS"`
	CORSOriginSuffixes string `env:"CORS_ORIGIN_SUFFIXES"`

	EventRequireOwner bool `env:"EVENT_REQUIRE_OWNER,default=false"`

	AuthRateLimit float64 `env:"AUTH_RATE_LIMIT,default=5"`
	AuthRateBurst int     `env:"AUTH_RATE_BURST,default=10"`

	RedisURL      string        `env:"REDIS_URL"`
	ChainCacheTTL time.Duration `env:"CHAIN_CACHE_TTL,default=15s"`

	Flow Flow
}

type Flow struct {
	Network                string        `env:"FLOW_NETWORK,default=testnet"`
	AccessNode             string        `env:"FLOW_ACCESS_NODE"`
	WalletDiscovery        string        `env:"FLOW_WALLET_DISCOVERY"`
	EventContract          string        `env:"FLOW_KAIZEN_EVENT_CONTRACT"`
	NFTContract            string        `env:"FLOW_KAIZEN_NFT_CONTRACT"`
	WalletConnectProjectID string        `env:"WALLETCONNECT_PROJECT_ID"`
	PollInterval           time.Duration `env:"FLOW_POLL_INTERVAL,default=2500ms"`
}

// MustLoad reads .env (when present) and the process environment. It panics on invalid configuration.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic("config: " + err.Error())
	}
	return cfg
}

func Load() (*Config, error) {
	// a missing .env file is the normal case outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills environment-dependent defaults and rejects unusable values.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("unknown ENV %q", c.Env)
	}

	if c.JWTSecret == "" {
		if c.Env != EnvLocal {
			return errors.New("JWT_SECRET is required")
		}
		c.JWTSecret = localJWTSecret
	}

	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}

	url := c.StorageURL()
	switch c.StorageDriver {
	case DriverMongo:
		if url == "" {
			return errors.New("DB_URL or DATABASE_URL is required")
		}
		if !strings.HasPrefix(url, "mongodb://") && !strings.HasPrefix(url, "mongodb+srv://") {
			return errors.New("mongo connection string must start with mongodb:// or mongodb+srv://")
		}
	case DriverPostgres:
		if url == "" {
			return errors.New("DB_URL or DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	return nil
}

// StorageURL returns DB_URL, falling back to DATABASE_URL.
func (c *Config) StorageURL() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	return c.DatabaseURL
}

func (c *Config) AllowedOrigins() []string {
	if c.CORSOrigins == "" {
		return defaultOrigins
	}
	return splitList(c.CORSOrigins)
}

func (c *Config) AllowedSuffixes() []string { return splitList(c.CORSOriginSuffixes) }

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
