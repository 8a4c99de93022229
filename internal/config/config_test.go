package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "bag", cfg.PieceSupply)
	assert.Equal(t, int64(0), cfg.GameSeed)
	assert.Equal(t, 50*time.Millisecond, cfg.TickResolution)
	assert.Equal(t, 5000, cfg.SimulationSteps)
	assert.False(t, cfg.ReplayEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv_Values(t *testing.T) {
	cfg, err := FromEnv(envFrom(map[string]string{
		"APP_ENV":            "production",
		"LOG_LEVEL":          "DEBUG",
		"DATABASE_URL":       "postgres://localhost/gitris?sslmode=disable",
		"PIECE_SUPPLY":       "random",
		"GAME_SEED":          "42",
		"TICK_RESOLUTION_MS": "20",
		"SIMULATION_STEPS":   "100",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.ReplayEnabled())
	assert.Equal(t, "random", cfg.PieceSupply)
	assert.Equal(t, int64(42), cfg.GameSeed)
	assert.Equal(t, 20*time.Millisecond, cfg.TickResolution)
	assert.Equal(t, 100, cfg.SimulationSteps)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "seed", env: map[string]string{"GAME_SEED": "abc"}, want: "GAME_SEED"},
		{name: "tick", env: map[string]string{"TICK_RESOLUTION_MS": "0"}, want: "TICK_RESOLUTION_MS"},
		{name: "tick not a number", env: map[string]string{"TICK_RESOLUTION_MS": "fast"}, want: "TICK_RESOLUTION_MS"},
		{name: "steps", env: map[string]string{"SIMULATION_STEPS": "-1"}, want: "SIMULATION_STEPS"},
		{name: "supply", env: map[string]string{"PIECE_SUPPLY": "tgm"}, want: "PIECE_SUPPLY"},
		{name: "log level", env: map[string]string{"LOG_LEVEL": "trace"}, want: "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envFrom(tt.env))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is fine", func(t *testing.T) {
		assert.NoError(t, loadEnvFile(filepath.Join(dir, "absent.env")))
	})

	t.Run("values are loaded", func(t *testing.T) {
		path := filepath.Join(dir, "ok.env")
		require.NoError(t, os.WriteFile(path, []byte("GITRIS_TEST_SUPPLY=random\n"), 0o600))
		t.Setenv("GITRIS_TEST_SUPPLY", "")
		require.NoError(t, os.Unsetenv("GITRIS_TEST_SUPPLY"))

		require.NoError(t, loadEnvFile(path))
		assert.Equal(t, "random", os.Getenv("GITRIS_TEST_SUPPLY"))
	})

	t.Run("malformed file is reported", func(t *testing.T) {
		path := filepath.Join(dir, "broken.env")
		require.NoError(t, os.WriteFile(path, []byte("GITRIS_TEST_BROKEN=\"unterminated\n"), 0o600))
		err := loadEnvFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})

	t.Run("unreadable path is reported", func(t *testing.T) {
		// ディレクトリは開けても読めない
		assert.Error(t, loadEnvFile(dir))
	})
}
