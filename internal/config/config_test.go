package config_test

import (
	"testing"
	"time"

	"github.com/localspot/localspot-go/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "https://placeholder.api", cfg.API.BaseURL)
	require.Equal(t, 15*time.Second, cfg.API.Timeout)
	require.Equal(t, time.Minute, cfg.Auth.RefreshLead)
	require.Equal(t, uint32(65536), cfg.Store.KDF.MemKiB)
	require.Equal(t, time.Hour, cfg.Cache.DefaultTTL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOCALSPOT_API_BASE_URL", "https://api.localspot.dev")
	t.Setenv("LOCALSPOT_API_TIMEOUT", "5s")
	t.Setenv("LOCALSPOT_AUTH_REFRESH_LEAD", "30s")
	t.Setenv("LOCALSPOT_STORE_KDF_TIME", "3")

	cfg, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "https://api.localspot.dev", cfg.API.BaseURL)
	require.Equal(t, 5*time.Second, cfg.API.Timeout)
	require.Equal(t, 30*time.Second, cfg.Auth.RefreshLead)
	require.Equal(t, uint32(3), cfg.Store.KDF.Time)
}
