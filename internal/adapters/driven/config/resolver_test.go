package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajeeshbabu/mahal-sync/internal/adapters/driven/storage/memory"
	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeSystemFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), SystemSettingsFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestResolver_Unconfigured(t *testing.T) {
	r, err := NewResolver(memory.NewConfigStore(), WithEnv(envOf(nil)), WithSystemPath(""))
	require.NoError(t, err)

	s := r.Settings()
	assert.False(t, s.IsConfigured())
	assert.Equal(t, domain.SourceNone, s.Remote.Source)
	assert.Equal(t, domain.DefaultSyncSettings(), s)
}

func TestResolver_FileWins(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		driven.KeyRemoteURL:    "https://file.test",
		driven.KeyRemoteAPIKey: "file-key",
	})
	env := envOf(map[string]string{EnvURL: "https://env.test", EnvAPIKey: "env-key", EnvToken: "env-jwt"})

	r, err := NewResolver(store, WithEnv(env), WithSystemPath(""))
	require.NoError(t, err)

	s := r.Settings()
	assert.True(t, s.IsConfigured())
	assert.Equal(t, "https://file.test", s.Remote.BaseURL)
	assert.Equal(t, "file-key", s.Remote.APIKey)
	assert.Equal(t, "env-jwt", s.Remote.BearerToken, "each key resolves independently")
	assert.Equal(t, domain.SourceFile, s.Remote.Source)
}

func TestResolver_EnvThenSystem(t *testing.T) {
	path := writeSystemFile(t, "url = \"https://system.test\"\napi_key = \"system-key\"\ntenant = \"u123\"\n")

	r, err := NewResolver(memory.NewConfigStore(),
		WithEnv(envOf(map[string]string{EnvURL: "https://env.test", EnvAPIKey: ""})),
		WithSystemPath(path))
	require.NoError(t, err)

	s := r.Settings()
	assert.Equal(t, "https://env.test", s.Remote.BaseURL)
	assert.Equal(t, "system-key", s.Remote.APIKey, "empty env values fall through")
	assert.Equal(t, "u123", s.Remote.TenantID)
	assert.Equal(t, domain.SourceEnv, s.Remote.Source)
	assert.Equal(t, "system-key", s.Remote.Token())
}

func TestResolver_SystemOnly(t *testing.T) {
	path := writeSystemFile(t, "url = \"https://system.test\"\napi_key = \"k\"\n")

	r, err := NewResolver(memory.NewConfigStore(), WithEnv(envOf(nil)), WithSystemPath(path))
	require.NoError(t, err)

	assert.Equal(t, domain.SourceSystem, r.Settings().Remote.Source)
}

func TestResolver_MissingSystemFileIsIgnored(t *testing.T) {
	r, err := NewResolver(memory.NewConfigStore(),
		WithEnv(envOf(nil)),
		WithSystemPath(filepath.Join(t.TempDir(), "absent.toml")))
	require.NoError(t, err)
	assert.False(t, r.Settings().IsConfigured())
}

func TestResolver_CorruptSystemFile(t *testing.T) {
	path := writeSystemFile(t, "not = [valid")

	_, err := NewResolver(memory.NewConfigStore(), WithEnv(envOf(nil)), WithSystemPath(path))
	assert.Error(t, err)
}

func TestResolver_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), SystemSettingsFile)
	r, err := NewResolver(memory.NewConfigStore(), WithEnv(envOf(nil)), WithSystemPath(path))
	require.NoError(t, err)
	assert.False(t, r.Settings().IsConfigured())

	require.NoError(t, os.WriteFile(path, []byte("url = \"https://x.test\"\napi_key = \"k\"\n"), 0600))
	require.NoError(t, r.Reload())
	assert.True(t, r.Settings().IsConfigured())
}

func TestResolver_PolicyValues(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		driven.KeyMaxAttempts:       int64(5),
		driven.KeyRetryBaseDelay:    "10s",
		driven.KeyFetchBaseDelay:    "1s",
		driven.KeyRetention:         "72h",
		driven.KeyRequestsPerSecond: 2.0,
		driven.KeyLogFile:           "/tmp/mahal-sync.log",
		driven.KeyDaemonListen:      "127.0.0.1:9000",
	})

	r, err := NewResolver(store, WithEnv(envOf(nil)), WithSystemPath(""))
	require.NoError(t, err)

	s := r.Settings()
	assert.Equal(t, 5, s.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, s.Retry.BaseDelay)
	assert.Equal(t, time.Second, s.Retry.FetchBaseDelay)
	assert.Equal(t, domain.DefaultFetchAttempts, s.Retry.FetchAttempts)
	assert.Equal(t, 72*time.Hour, s.Retention)
	assert.InDelta(t, 2.0, s.RateLimit.RequestsPerSecond, 0.0001)
	assert.Equal(t, domain.DefaultRequestBurst, s.RateLimit.Burst)
	assert.Equal(t, "/tmp/mahal-sync.log", s.Log.File)
	assert.Equal(t, "127.0.0.1:9000", s.WebSocketListen)
}

func TestResolver_FollowsStoreChanges(t *testing.T) {
	store := memory.NewConfigStore()
	r, err := NewResolver(store, WithEnv(envOf(nil)), WithSystemPath(""))
	require.NoError(t, err)
	assert.False(t, r.Settings().IsConfigured())

	require.NoError(t, store.Set(driven.KeyRemoteURL, "https://x.test"))
	require.NoError(t, store.Set(driven.KeyRemoteAPIKey, "k"))
	assert.True(t, r.Settings().IsConfigured())
}
