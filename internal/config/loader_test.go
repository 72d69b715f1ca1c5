package config

import (
	"os"
	"path/filepath"
	"testing"

	coreerrors "lifekit-core/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 清掉测试关心的环境变量，避免宿主环境干扰
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LIFEKIT_LOG_LEVEL", "LIFEKIT_RUNTIME_MODE", "LIFEKIT_RUNTIME_PROFILE",
		"LIFEKIT_SETTINGS_BACKEND", "LIFEKIT_SETTINGS_FILE_PATH",
		"LIFEKIT_API_ENABLED", "LIFEKIT_API_LISTEN",
	} {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lifekit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "background", cfg.Runtime.Mode)
	assert.Empty(t, cfg.Runtime.Profile)
	assert.Equal(t, BackendMemory, cfg.Settings.Backend)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, "127.0.0.1:7070", cfg.API.ListenAddr)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `
log:
  level: debug
runtime:
  mode: interactive
  profile: fast
settings:
  backend: file
  file_path: /tmp/lifekit-settings.json
  seed:
    cleanup.fast_batch: "6"
lifecycle:
  type_caps:
    file: 8
subscription:
  category_caps:
    io: 3
api:
  enabled: true
  listen_addr: 127.0.0.1:9911
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "interactive", cfg.Runtime.Mode)
	assert.Equal(t, "fast", cfg.Runtime.Profile)
	assert.Equal(t, BackendFile, cfg.Settings.Backend)
	assert.Equal(t, "/tmp/lifekit-settings.json", cfg.Settings.FilePath)
	assert.Equal(t, "6", cfg.Settings.Seed["cleanup.fast_batch"])
	assert.Equal(t, 8, cfg.Lifecycle.TypeCaps["file"])
	assert.Equal(t, 3, cfg.Subscription.CategoryCaps["io"])
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, "127.0.0.1:9911", cfg.API.ListenAddr)
}

func TestLoad_EnvBeatsYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
runtime:
  profile: fast
api:
  enabled: false
`)
	t.Setenv("LIFEKIT_RUNTIME_PROFILE", "conservative")
	t.Setenv("LIFEKIT_API_ENABLED", "true")
	t.Setenv("LIFEKIT_API_LISTEN", "127.0.0.1:9912")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "conservative", cfg.Runtime.Profile)
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, "127.0.0.1:9912", cfg.API.ListenAddr)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "runtime: [not a mapping")

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, coreerrors.CodeInvalidParam, coreerrors.GetCode(err))
}

func TestLoad_MissingFileIsSkipped(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Settings.Backend)
}

func TestValidate(t *testing.T) {
	base := func() *Root {
		cfg := &Root{}
		require.NoError(t, NewDefaultSource().LoadInto(cfg))
		return cfg
	}

	t.Run("defaults pass", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := base()
		cfg.Settings.Backend = "etcd"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Equal(t, coreerrors.CodeValidationError, coreerrors.GetCode(err))
	})

	t.Run("file backend needs path", func(t *testing.T) {
		cfg := base()
		cfg.Settings.Backend = BackendFile
		require.Error(t, cfg.Validate())

		cfg.Settings.FilePath = "/tmp/s.json"
		require.NoError(t, cfg.Validate())
	})

	t.Run("redis backend needs addr", func(t *testing.T) {
		cfg := base()
		cfg.Settings.Backend = BackendRedis
		require.Error(t, cfg.Validate())

		cfg.Settings.Redis.Addr = "127.0.0.1:6379"
		require.NoError(t, cfg.Validate())
	})

	t.Run("postgres backend needs dsn", func(t *testing.T) {
		cfg := base()
		cfg.Settings.Backend = BackendPostgres
		require.Error(t, cfg.Validate())

		cfg.Settings.Postgres.DSN = "postgresql://localhost/lifekit"
		require.NoError(t, cfg.Validate())
	})

	t.Run("bad mode and profile", func(t *testing.T) {
		cfg := base()
		cfg.Runtime.Mode = "turbo"
		require.Error(t, cfg.Validate())

		cfg = base()
		cfg.Runtime.Profile = "ludicrous"
		require.Error(t, cfg.Validate())
	})

	t.Run("bad log settings", func(t *testing.T) {
		cfg := base()
		cfg.Log.Level = "verbose"
		require.Error(t, cfg.Validate())

		cfg = base()
		cfg.Log.Format = "xml"
		require.Error(t, cfg.Validate())

		cfg = base()
		cfg.Log.Output = "syslog"
		require.Error(t, cfg.Validate())
	})

	t.Run("file log output needs path", func(t *testing.T) {
		cfg := base()
		cfg.Log.Output = "file"
		require.Error(t, cfg.Validate())

		cfg.Log.File = "/tmp/lifekit.log"
		require.NoError(t, cfg.Validate())
	})

	t.Run("enabled api needs listen addr", func(t *testing.T) {
		cfg := base()
		cfg.API.Enabled = true
		cfg.API.ListenAddr = ""
		require.Error(t, cfg.Validate())
	})
}

func TestFindConfigFile_ExplicitWins(t *testing.T) {
	assert.Equal(t, "/etc/lifekit.yaml", FindConfigFile("/etc/lifekit.yaml"))
}
