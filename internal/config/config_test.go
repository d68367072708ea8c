package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load()
	require.EqualError(t, err, "DISCORD_TOKEN is required")
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
discord_token: from-file
log_level: debug
default_ban_reason: Breaking the rules
moderation:
  protected_role_ids: ["111"]
  purge_max_pages: 3
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("PROTECTED_ROLE_IDS", "222, 333,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DiscordToken)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "Breaking the rules", cfg.DefaultBanReason)
	assert.Equal(t, []string{"222", "333"}, cfg.Moderation.ProtectedRoleIDs)
	assert.Equal(t, 3, cfg.Moderation.PurgeMaxPages)
	assert.Equal(t, 200, cfg.Moderation.MassBanIntervalMS)
	assert.Equal(t, 100, cfg.MessageLog.CacheSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
discord_token: token
log_level: verbose
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LogLevel")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "discord_token: [unclosed"))
	_, err := Load()
	require.Error(t, err)
}

func TestValidateProtectedRoles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiscordToken = "token"
	require.NoError(t, Validate(cfg))

	cfg.Moderation.ProtectedRoleIDs = []string{"not-a-snowflake"}
	require.Error(t, Validate(cfg))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("anything"))

	logger, err := BuildLogger("ERROR")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
}
