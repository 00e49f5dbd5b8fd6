package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	t.Setenv("HARK_CONFIG", "/etc/hark/game.jsonc")
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, "/etc/hark/game.jsonc", resolved)
	t.Setenv("HARK_CONFIG", "")

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "hark", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "hark", "config.jsonc"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  "grpc": {"endpoint": "10.0.0.5:50051"},
  "audio": {
    "input": "default",
    "fallback": "default",
  },
  "engine": {"queue_size": 8}
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, "10.0.0.5:50051", loaded.Config.GRPC.Endpoint)
	require.Equal(t, 8, loaded.Config.Engine.QueueSize)
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"backend": "grpc", "engine": {"queue_size": 8}}`), 0o600))

	t.Setenv("HARK_BACKEND", "WebSocket")
	t.Setenv("HARK_QUEUE_SIZE", "not-a-number")
	t.Setenv("HARK_LOG_LEVEL", " debug ")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendWebSocket, loaded.Config.Backend)
	require.Equal(t, 8, loaded.Config.Engine.QueueSize)
	require.Equal(t, "debug", loaded.Config.Debug.LogLevel)
	require.Equal(t, []string{"HARK_BACKEND", "HARK_LOG_LEVEL"}, loaded.Overrides)
}

func TestLoadRejectsInvalidEnvironmentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonc")
	t.Setenv("HARK_QUEUE_SIZE", "0")

	_, err := Load(path)
	require.ErrorContains(t, err, "HARK_QUEUE_SIZE")
	require.ErrorContains(t, err, "engine.queue_size")
}

func TestApplyEnvSkipsBlankValues(t *testing.T) {
	cfg := Default()
	env := map[string]string{"HARK_GRPC_ENDPOINT": "  ", "HARK_METRICS_LISTEN": "127.0.0.1:9464"}
	applied := applyEnv(&cfg, func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	})

	require.Equal(t, []string{"HARK_METRICS_LISTEN"}, applied)
	require.Equal(t, Default().GRPC.Endpoint, cfg.GRPC.Endpoint)
	require.Equal(t, "127.0.0.1:9464", cfg.Metrics.Listen)
}
