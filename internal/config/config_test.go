package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDir(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "")

		dir := ConfigDir()
		assert.NotEmpty(t, dir)
		assert.True(t, strings.HasSuffix(dir, ".dbsnap"), "should end with .dbsnap")
	})

	t.Run("override with DBSNAP_CONFIG_DIR", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "/tmp/test-dbsnap-config")

		assert.Equal(t, "/tmp/test-dbsnap-config", ConfigDir())
		assert.Equal(t, "/tmp/test-dbsnap-config/settings.yaml", SettingsPath())
	})
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, "warn", s.LogLevel)
	assert.Empty(t, s.LogFile)
	assert.True(t, s.SortEnabled())
	assert.Equal(t, 30*time.Second, s.LockWait())
	assert.Empty(t, s.Excludes)
	assert.NoError(t, s.Validate())
}

func TestLoadSettingsMissingFile(t *testing.T) {
	t.Setenv(EnvConfigDir, t.TempDir())

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadSettingsPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sort_entries: false\nexcludes:\n  - \"*.tmp\"\n  - wal/\n"), 0600))

	s, err := LoadSettingsFromPath(path)
	require.NoError(t, err)
	assert.False(t, s.SortEnabled())
	assert.Equal(t, []string{"*.tmp", "wal/"}, s.Excludes)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "warn", s.LogLevel)
	assert.Equal(t, 30, s.LockTimeout)
}

func TestLoadSettingsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "log_level: [unclosed"},
		{"unknown level", "log_level: chatty"},
		{"negative timeout", "lock_timeout: -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := LoadSettingsFromPath(path)
			assert.Error(t, err)
		})
	}
}

func TestInitConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")
	t.Setenv(EnvConfigDir, dir)

	written, err := InitConfigDir()
	require.NoError(t, err)
	assert.True(t, written)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	// An existing file is left alone.
	require.NoError(t, os.WriteFile(SettingsPath(), []byte("log_level: debug\n"), 0600))
	written, err = InitConfigDir()
	require.NoError(t, err)
	assert.False(t, written)

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestSetConfigDir(t *testing.T) {
	t.Setenv(EnvConfigDir, "/tmp/from-env")
	SetConfigDir("/tmp/from-flag")
	defer SetConfigDir("")

	assert.Equal(t, "/tmp/from-flag", ConfigDir())

	SetConfigDir("")
	assert.Equal(t, "/tmp/from-env", ConfigDir())
}
