package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "5000", cfg.Port)
	require.Equal(t, "50051", cfg.GRPCPort)
	require.Equal(t, "social_db", cfg.MongoDatabase)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
	require.Equal(t, 10, cfg.RateLimitRPM)
	require.Equal(t, 10*time.Minute, cfg.ConversationCacheTTL)
	require.Equal(t, 32, cfg.WSSendBuffer)
	require.False(t, cfg.TLSEnabled())
	require.False(t, cfg.StorageEnabled())
}

func TestLoadRequiresMongoURI(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesJWTKeys(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_KEYS", "k1:one,k2:two")
	t.Setenv("JWT_ACTIVE_KID", "k2")
	t.Setenv("APP_ENV", "Local")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"k1": "one", "k2": "two"}, cfg.JWTKeys)
	require.Equal(t, "development", cfg.AppEnv)
	require.True(t, cfg.IsDevelopment())
}

func TestValidate(t *testing.T) {
	base := Config{MongoURI: "mongodb://db", JWTSecret: "s", WSSendBuffer: 8}
	require.NoError(t, base.Validate())

	noSecret := base
	noSecret.JWTSecret = ""
	require.Error(t, noSecret.Validate())

	unknownKid := base
	unknownKid.JWTKeys = map[string]string{"k1": "one"}
	unknownKid.JWTActiveKid = "k9"
	require.Error(t, unknownKid.Validate())

	noKid := base
	noKid.JWTKeys = map[string]string{"k1": "one"}
	require.Error(t, noKid.Validate())

	tls := base
	tls.RequireTLS = true
	require.Error(t, tls.Validate())
	tls.TLSCert, tls.TLSKey = "cert.pem", "key.pem"
	require.NoError(t, tls.Validate())
}

func TestLoadRejectsMalformedJWTKeys(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_KEYS", "k1:one,k2")
	t.Setenv("JWT_ACTIVE_KID", "k1")

	_, err := Load()
	require.Error(t, err)
}

func TestParseKeyValues(t *testing.T) {
	got, err := parseKeyValues(" k1:one , k2:two:with-colon ,")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"k1": "one", "k2": "two:with-colon"}, got)

	_, err = parseKeyValues(":secret")
	require.Error(t, err)
}

func TestIsDevelopment(t *testing.T) {
	for env, want := range map[string]bool{"development": true, "test": true, "production": false, "staging": false} {
		require.Equal(t, want, (&Config{AppEnv: env}).IsDevelopment(), env)
	}
}
