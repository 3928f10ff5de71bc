package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logind.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "logind", cfg.Server.Name)
	assert.Equal(t, 5, cfg.Login.AttemptsBeforeBan)
	assert.Equal(t, 10*time.Minute, cfg.Login.BanDuration)
	assert.Equal(t, 60*time.Second, cfg.Login.IdleTimeout)
	assert.Equal(t, 10, cfg.Login.KeyPairPoolSize)
	assert.True(t, cfg.Login.AutoCreateAccounts)
	assert.Equal(t, "0.0.0.0:2106", cfg.Network.BindAddress)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[server]
name = "eu-login-1"

[login]
auto_create_accounts = false
attempts_before_ban = 3
ban_duration = 300000000000

[network]
bind_address = "0.0.0.0:2107"

[logging]
level = "debug"
format = "json"
`))
	require.NoError(t, err)

	assert.Equal(t, "eu-login-1", cfg.Server.Name)
	assert.False(t, cfg.Login.AutoCreateAccounts)
	assert.Equal(t, 3, cfg.Login.AttemptsBeforeBan)
	assert.Equal(t, 5*time.Minute, cfg.Login.BanDuration)
	assert.Equal(t, "0.0.0.0:2107", cfg.Network.BindAddress)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Sections the file omits keep their defaults.
	assert.Equal(t, 10, cfg.Login.KeyPairPoolSize)
	assert.Equal(t, "data/servers.yaml", cfg.GameServer.DefinitionsPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeConfig(t, "[server\nname="))
	assert.Error(t, err)
}
