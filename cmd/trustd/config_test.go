package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmerrifield20/trustmesh/internal/trust"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9090, cfg.GRPCPort)
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, 24*time.Hour, cfg.CheckpointTTL)
	assert.Equal(t, 2*time.Minute, cfg.DiscoveryTimeout)
	assert.False(t, cfg.DiscoveryEnabled)
	assert.Equal(t, trust.DefaultConfig(), cfg.Trust)
	assert.Equal(t, 5*time.Minute, cfg.WatchdogInterval)
	assert.Equal(t, 1, cfg.WatchdogFailThreshold)
	assert.Empty(t, cfg.Webhooks)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TRUST_INITIAL", "0.7")
	t.Setenv("TRUST_SOFT_REVOKE_THRESHOLD", "0.2")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("SERVER_RATE_LIMIT_RPS", "0")

	cfg, err := loadConfig(viper.New(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Trust.InitialTrust)
	assert.Equal(t, 0.2, cfg.Trust.SoftRevokeThreshold)
	assert.Equal(t, "postgres", cfg.Backend)
	assert.Zero(t, cfg.RateLimitRPS)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend":      {"STORE_BACKEND": "etcd"},
		"initial out of range": {"TRUST_INITIAL": "1.5"},
		"thresholds inverted":  {"TRUST_SOFT_REVOKE_THRESHOLD": "0.05", "TRUST_HARD_REVOKE_THRESHOLD": "0.3"},
		"zero initial":         {"TRUST_INITIAL": "0"},
		"zero soft threshold":  {"TRUST_SOFT_REVOKE_THRESHOLD": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(viper.New(), zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_Webhooks(t *testing.T) {
	v := viper.New()
	v.Set("webhooks", []map[string]any{
		{"url": "https://hooks.example/a", "events": []string{"device.revoked"}, "secret": "s"},
		{"url": "https://hooks.example/b"},
	})
	cfg, err := loadConfig(v, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, cfg.Webhooks, 2)
	assert.Equal(t, "https://hooks.example/a", cfg.Webhooks[0].URL)
	assert.Equal(t, []string{"device.revoked"}, cfg.Webhooks[0].Events)
	assert.Equal(t, "s", cfg.Webhooks[0].Secret)
	assert.Empty(t, cfg.Webhooks[1].Events)

	v = viper.New()
	v.Set("webhooks", []map[string]any{{"events": []string{"*"}}})
	_, err = loadConfig(v, zap.NewNop())
	assert.ErrorContains(t, err, "url is required")
}

func TestContainsWildcard(t *testing.T) {
	assert.True(t, containsWildcard([]string{"http://a", " * "}))
	assert.False(t, containsWildcard([]string{"http://a"}))
	assert.False(t, containsWildcard(nil))
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("memory", func(t *testing.T) {
		be, err := openBackend(ctx, &config{Backend: "memory"}, zap.NewNop())
		require.NoError(t, err)
		defer be.close()
		assert.False(t, be.persistent)

		n, err := be.ledger.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("file keeps only credentials", func(t *testing.T) {
		be, err := openBackend(ctx, &config{Backend: "file", FilePath: filepath.Join(dir, "certs.json")}, zap.NewNop())
		require.NoError(t, err)
		defer be.close()
		assert.False(t, be.persistent)
	})

	t.Run("sqlite creates parent dir", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "trustmesh.db")
		be, err := openBackend(ctx, &config{Backend: "sqlite", SQLitePath: path}, zap.NewNop())
		require.NoError(t, err)
		defer be.close()
		assert.True(t, be.persistent)
		require.NoError(t, be.ledger.Verify(ctx))
		assert.FileExists(t, path)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := openBackend(ctx, &config{Backend: "etcd"}, zap.NewNop())
		assert.Error(t, err)
	})
}
