package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FINANCE_DB_PATH", "")
	t.Setenv("FINANCE_OWNER_ID", "")
	t.Setenv("FINANCE_DEVICE_ID", "")
	t.Setenv("FINANCE_REMOTE_URL", "")
	t.Setenv("FINANCE_LISTEN_ADDR", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "finance.db", cfg.DatabasePath)
	require.Equal(t, "default-device", cfg.DeviceID)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.False(t, cfg.SyncEnabled())
	require.False(t, cfg.ServerEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FINANCE_DB_PATH", "/tmp/ledger.db")
	t.Setenv("FINANCE_OWNER_ID", "owner-1")
	t.Setenv("FINANCE_DEVICE_ID", "phone-7")
	t.Setenv("FINANCE_REMOTE_URL", "https://store.internal")
	t.Setenv("FINANCE_FEED_URL", "wss://store.internal")
	t.Setenv("FINANCE_TOKEN", "tok")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/ledger.db", cfg.DatabasePath)
	require.Equal(t, "owner-1", cfg.OwnerID)
	require.Equal(t, "phone-7", cfg.DeviceID)
	require.True(t, cfg.SyncEnabled())
}

func TestSyncEnabledNeedsOwnerAndURL(t *testing.T) {
	cfg := &Config{RemoteURL: "https://store.internal"}
	require.False(t, cfg.SyncEnabled())

	cfg = &Config{OwnerID: "owner-1"}
	require.False(t, cfg.SyncEnabled())

	cfg = &Config{RemoteURL: "https://store.internal", OwnerID: "owner-1"}
	require.True(t, cfg.SyncEnabled())
}

func TestServerEnabledNeedsDatabaseAndSecret(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://localhost/finance"}
	require.False(t, cfg.ServerEnabled())

	cfg.JWTSecret = "secret"
	require.True(t, cfg.ServerEnabled())
}
