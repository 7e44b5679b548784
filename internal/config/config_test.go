package config

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnvs sets multiple env vars for the duration of the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

const strongSecret = "this-is-a-very-secure-secret-key-for-production-use-1234"

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, map[string]string{"ENVIRONMENT": "development"})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, DevelopmentSecret, cfg.JWTSecret)
	assert.Equal(t, "pocket-finance-api", cfg.JWTIssuer)
	assert.Equal(t, 15, cfg.JWTAccessMinutes)
	assert.Equal(t, 7, cfg.JWTRefreshDays)
	assert.Equal(t, 10, cfg.LoginRateLimit)
	assert.Equal(t, time.Minute, cfg.LoginRateLimitWindow)
	assert.True(t, cfg.SeedDemo())
}

func TestLoad_Production_RejectsDefaultSecret(t *testing.T) {
	setEnvs(t, map[string]string{"ENVIRONMENT": "production"})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be explicitly set")
}

func TestLoad_Staging_RejectsDefaultSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT": "staging",
		"JWT_SECRET":  DevelopmentSecret,
	})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be explicitly set")
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		t.Run(env, func(t *testing.T) {
			setEnvs(t, map[string]string{
				"ENVIRONMENT": env,
				"JWT_SECRET":  "short-but-not-default-secret",
			})

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid JWT configuration")
		})
	}
}

func TestLoad_RejectsBlankSecret(t *testing.T) {
	setEnvs(t, map[string]string{"JWT_SECRET": "   "})

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_AcceptsBase64Secret(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	setEnvs(t, map[string]string{
		"ENVIRONMENT": "production",
		"JWT_SECRET":  key,
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, key, cfg.JWTSecret)
	assert.False(t, cfg.SeedDemo())
}

func TestLoad_Production_AcceptsStrongSecret(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT": "production",
		"JWT_SECRET":  strongSecret,
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, strongSecret, cfg.JWTSecret)
}

func TestLoad_TokenLifetimesMustBePositive(t *testing.T) {
	tests := map[string]string{
		"JWT_ACCESS_TOKEN_MINUTES": "0",
		"JWT_REFRESH_TOKEN_DAYS":   "-1",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoad_Production_RejectsMemoryStorage(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":    "production",
		"JWT_SECRET":     strongSecret,
		"STORAGE_DRIVER": "memory",
	})

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
}

func TestLoad_RejectsUnknownEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "qa")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENVIRONMENT")
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "70000")

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT")
}

func TestLoad_MinConnsAboveMax(t *testing.T) {
	setEnvs(t, map[string]string{
		"POSTGRES_MAX_CONNS": "2",
		"POSTGRES_MIN_CONNS": "5",
	})

	_, err := Load()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_MIN_CONNS")
}

func TestSeedDemo_ExplicitOverride(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":    "development",
		"SEED_DEMO_USER": "false",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.False(t, cfg.SeedDemo())
}

func TestDerivedConfigs(t *testing.T) {
	setEnvs(t, map[string]string{
		"POSTGRES_HOST":            "db.internal",
		"POSTGRES_PASSWORD":        "p@ss:word",
		"REDIS_HOST":               "cache.internal",
		"JWT_ACCESS_TOKEN_MINUTES": "30",
		"JWT_REFRESH_TOKEN_DAYS":   "14",
		"CORS_ALLOWED_ORIGINS":     "https://app.pocket.local,https://admin.pocket.local",
	})

	cfg, err := Load()
	require.NoError(t, err)

	jwtCfg := cfg.JWTConfig()
	assert.Equal(t, 30*time.Minute, jwtCfg.AccessTTL)
	assert.Equal(t, 14*24*time.Hour, jwtCfg.RefreshTTL)

	pg := cfg.PostgresConfig()
	assert.Equal(t, "db.internal", pg.Host)
	assert.Contains(t, pg.DSN(), "db.internal:5432")
	assert.NotContains(t, pg.DSN(), "p@ss:word")

	assert.Equal(t, "cache.internal:6379", cfg.RedisConfig().Addr())

	cors := cfg.CORSConfig()
	assert.Equal(t, []string{"https://app.pocket.local", "https://admin.pocket.local"}, cors.AllowedOrigins)

	tc := cfg.TracingConfig("v1.2.3")
	assert.Equal(t, ServiceName, tc.ServiceName)
	assert.Equal(t, "v1.2.3", tc.ServiceVersion)
	assert.False(t, tc.Enabled)
}
