package cli_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagsOverrideFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kiln.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entry: from.File\nmods: file-mods\nclasspath: file-classes\n"), 0o644))
	t.Setenv("KILN_MODS", "env-mods")

	cfg, err := cli.LoadConfig(cli.Flags{
		ConfigPath: path,
		SearchPath: "flag-classes",
		Protected:  []string{"sys/"},
	})
	require.NoError(t, err)

	assert.Equal(t, "from.File", cfg.EntrySymbol)
	assert.Equal(t, "env-mods", cfg.ModsDir)
	assert.Equal(t, "flag-classes", cfg.SearchPath)
	assert.Equal(t, []string{"sys/"}, cfg.ProtectedPrefixes)
}

func TestLoadConfig_DebugWins(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := cli.LoadConfig(cli.Flags{LogLevel: "error", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := cli.LoadConfig(cli.Flags{LogLevel: "loud"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := cli.LoadConfig(cli.Flags{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateLogger_Level(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "debug"
	assert.True(t, cli.CreateLogger(cfg).Enabled(t.Context(), slog.LevelDebug))

	cfg.LogLevel = "warn"
	assert.False(t, cli.CreateLogger(cfg).Enabled(t.Context(), slog.LevelInfo))
}
