// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds every setting the API process reads at startup.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	Port     string `env:"PORT" envDefault:"5000"`
	GRPCPort string `env:"GRPC_PORT" envDefault:"50051"`

	MongoURI      string `env:"MONGODB_URI,required"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"social_db"`

	JWTSecret    string            `env:"JWT_SECRET"`
	JWTKeys      map[string]string `env:"JWT_KEYS"` // kid:secret,kid2:secret2
	JWTActiveKid string            `env:"JWT_ACTIVE_KID"`
	JWTTTL       time.Duration     `env:"JWT_TTL" envDefault:"24h"`

	RateLimitRPM int `env:"RATE_LIMIT_RPM" envDefault:"10"`

	TLSCert    string `env:"TLS_CERT"`
	TLSKey     string `env:"TLS_KEY"`
	RequireTLS bool   `env:"REQUIRE_TLS" envDefault:"false"`

	RedisURL             string        `env:"REDIS_URL"`
	ConversationCacheTTL time.Duration `env:"CONVERSATION_CACHE_TTL" envDefault:"10m"`

	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseBucket     string `env:"SUPABASE_BUCKET"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_KEY"`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	WSSendBuffer     int           `env:"WS_SEND_BUFFER" envDefault:"32"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.ParseWithFuncs(cfg, parsers); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	cfg.AppEnv = normalizeEnv(cfg.AppEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsers covers field types env has no built-in parser for.
var parsers = map[reflect.Type]env.ParserFunc{
	reflect.TypeOf(map[string]string(nil)): parseKeyValues,
}

// parseKeyValues reads "k1:v1,k2:v2" into a map.
func parseKeyValues(value string) (interface{}, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, ":")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("malformed entry %q, want key:value", pair)
		}
		out[k] = v
	}
	return out, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.MongoURI) == "" {
		return errors.New("MONGODB_URI must be set")
	}
	if c.JWTSecret == "" && len(c.JWTKeys) == 0 {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if len(c.JWTKeys) > 0 {
		if c.JWTActiveKid == "" {
			return errors.New("JWT_ACTIVE_KID must be set when JWT_KEYS is used")
		}
		if _, ok := c.JWTKeys[c.JWTActiveKid]; !ok {
			return fmt.Errorf("JWT_ACTIVE_KID %q is not present in JWT_KEYS", c.JWTActiveKid)
		}
	}
	if c.RequireTLS && !c.TLSEnabled() {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if c.WSSendBuffer <= 0 {
		return errors.New("WS_SEND_BUFFER must be positive")
	}
	return nil
}

// TLSEnabled reports whether both halves of the certificate pair are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// StorageEnabled reports whether the object store for image attachments is configured.
func (c *Config) StorageEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseBucket != "" && c.SupabaseServiceKey != ""
}

// IsDevelopment is true for local, development and test environments.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "test"
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
