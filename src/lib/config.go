package lib

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every setting of the service, read from the environment.
type Config struct {
	Port      string `env:"PORT" envDefault:"3000"`
	MountPath string `env:"POSTS_MOUNT_PATH" envDefault:"/api/posts"`

	StoreDriver   string        `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI      string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string        `env:"MONGO_DATABASE" envDefault:"devconnector"`
	DBPath        string        `env:"DB_PATH" envDefault:"./posts.db"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"fallback-secret-key"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"1h"`

	AllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"http://localhost:3000, http://localhost:5173"`

	PostMinLength int `env:"POST_TEXT_MIN_LENGTH" envDefault:"1"`
	PostMaxLength int `env:"POST_TEXT_MAX_LENGTH" envDefault:"300"`

	// Compatibility switches for clients that depend on the old router.
	LegacyNullPost   bool `env:"LEGACY_NULL_POST"`
	LegacyOwnerCheck bool `env:"LEGACY_OWNER_CHECK"`
}

// LoadConfig parses the environment into a Config and checks it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMongo, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.PostMinLength < 1 || c.PostMaxLength < c.PostMinLength {
		return fmt.Errorf("invalid post length bounds [%d, %d]", c.PostMinLength, c.PostMaxLength)
	}
	if !strings.HasPrefix(c.MountPath, "/") {
		return fmt.Errorf("POSTS_MOUNT_PATH must start with /, got %q", c.MountPath)
	}
	return nil
}

// PostRules returns the validation bounds configured for post text.
func (c Config) PostRules() PostRules {
	return PostRules{Min: c.PostMinLength, Max: c.PostMaxLength}
}
