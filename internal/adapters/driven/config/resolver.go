// Package config resolves sync settings from the layered configuration sources.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

// Ensure Resolver implements the interface.
var _ driven.SettingsProvider = (*Resolver)(nil)

// Environment variables consulted after the config file.
const (
	EnvURL    = "MAHAL_SYNC_URL"
	EnvAPIKey = "MAHAL_SYNC_API_KEY"
	EnvToken  = "MAHAL_SYNC_TOKEN"
	EnvTenant = "MAHAL_SYNC_TENANT"
)

// SystemSettingsFile is the OS-level settings file name under the user config dir.
const SystemSettingsFile = "settings.toml"

// systemSettings is the layout of the OS-level settings file.
type systemSettings struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
	Token  string `toml:"token"`
	Tenant string `toml:"tenant"`
}

// Resolver produces domain.SyncSettings from, in order of precedence, the
// application config file, the environment, and the OS-level settings file.
// Each credential is resolved independently.
type Resolver struct {
	store      driven.ConfigStore
	lookupEnv  func(string) (string, bool)
	systemPath string

	mu     sync.RWMutex
	system systemSettings
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnv replaces the environment lookup. Used by tests.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(r *Resolver) { r.lookupEnv = lookup }
}

// WithSystemPath sets the OS-level settings file. Empty disables that layer.
func WithSystemPath(path string) Option {
	return func(r *Resolver) { r.systemPath = path }
}

// DefaultSystemPath returns <user config dir>/mahal-sync/settings.toml.
func DefaultSystemPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mahal-sync", SystemSettingsFile)
}

// NewResolver creates a resolver over store.
func NewResolver(store driven.ConfigStore, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		store:      store,
		lookupEnv:  os.LookupEnv,
		systemPath: DefaultSystemPath(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the OS-level settings file. The config store reloads itself.
func (r *Resolver) Reload() error {
	var sys systemSettings
	if r.systemPath != "" {
		data, err := os.ReadFile(r.systemPath)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &sys); err != nil {
				return fmt.Errorf("parse %s: %w", r.systemPath, err)
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("read %s: %w", r.systemPath, err)
		}
	}

	r.mu.Lock()
	r.system = sys
	r.mu.Unlock()
	return nil
}

// Settings resolves the current settings. Zero policy values take defaults.
func (r *Resolver) Settings() domain.SyncSettings {
	r.mu.RLock()
	sys := r.system
	r.mu.RUnlock()

	url, source := r.resolve(driven.KeyRemoteURL, EnvURL, sys.URL)
	key, keySource := r.resolve(driven.KeyRemoteAPIKey, EnvAPIKey, sys.APIKey)
	token, _ := r.resolve(driven.KeyRemoteToken, EnvToken, sys.Token)
	tenant, _ := r.resolve(driven.KeyRemoteTenant, EnvTenant, sys.Tenant)

	if source == domain.SourceNone {
		source = keySource
	}

	s := domain.SyncSettings{
		Remote: domain.RemoteSettings{
			BaseURL:     url,
			APIKey:      key,
			BearerToken: token,
			TenantID:    tenant,
			Source:      source,
		},
		Retry: domain.RetrySettings{
			BaseDelay:      r.store.GetDuration(driven.KeyRetryBaseDelay),
			MaxAttempts:    r.store.GetInt(driven.KeyMaxAttempts),
			FetchBaseDelay: r.store.GetDuration(driven.KeyFetchBaseDelay),
			FetchAttempts:  r.store.GetInt(driven.KeyFetchAttempts),
		},
		RateLimit: domain.RateLimitSettings{
			RequestsPerSecond: r.store.GetFloat(driven.KeyRequestsPerSecond),
			Burst:             r.store.GetInt(driven.KeyRequestBurst),
		},
		Log: domain.LogSettings{
			File:       r.store.GetString(driven.KeyLogFile),
			MaxSizeMB:  r.store.GetInt(driven.KeyLogMaxSizeMB),
			MaxBackups: r.store.GetInt(driven.KeyLogMaxBackups),
		},
		Retention:       r.store.GetDuration(driven.KeyRetention),
		WebSocketListen: r.store.GetString(driven.KeyDaemonListen),
	}
	return s.Normalise()
}

// resolve returns the first non-empty value of a credential and its layer.
func (r *Resolver) resolve(key, env, system string) (string, domain.SettingsSource) {
	if v := r.store.GetString(key); v != "" {
		return v, domain.SourceFile
	}
	if v, ok := r.lookupEnv(env); ok && v != "" {
		return v, domain.SourceEnv
	}
	if system != "" {
		return system, domain.SourceSystem
	}
	return "", domain.SourceNone
}
