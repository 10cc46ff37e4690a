package services

import (
	"sync"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

// RemoteProvider hands out a remote store built from the live settings.
// The store is rebuilt only when the endpoint, credentials or throttle change.
type RemoteProvider struct {
	settings driven.SettingsProvider
	factory  driven.RemoteStoreFactory

	mu      sync.Mutex
	builtOn remoteKey
	store   driven.RemoteStore
}

type remoteKey struct {
	remote domain.RemoteSettings
	rate   domain.RateLimitSettings
}

// NewRemoteProvider creates a provider.
func NewRemoteProvider(settings driven.SettingsProvider, factory driven.RemoteStoreFactory) *RemoteProvider {
	return &RemoteProvider{settings: settings, factory: factory}
}

// Settings returns the current settings.
func (p *RemoteProvider) Settings() domain.SyncSettings {
	return p.settings.Settings().Normalise()
}

// Store returns the remote store for settings, or domain.ErrNotConfigured.
func (p *RemoteProvider) Store(settings domain.SyncSettings) (driven.RemoteStore, error) {
	if !settings.IsConfigured() {
		return nil, domain.ErrNotConfigured
	}

	key := remoteKey{remote: settings.Remote, rate: settings.RateLimit}
	// Source does not affect the client.
	key.remote.Source = domain.SourceNone

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store != nil && p.builtOn == key {
		return p.store, nil
	}
	store, err := p.factory(settings)
	if err != nil {
		return nil, err
	}
	p.store = store
	p.builtOn = key
	return store, nil
}

// staticSettings serves fixed settings.
type staticSettings domain.SyncSettings

func (s staticSettings) Settings() domain.SyncSettings {
	return domain.SyncSettings(s)
}

// StaticSettings wraps fixed settings as a driven.SettingsProvider.
func StaticSettings(s domain.SyncSettings) driven.SettingsProvider {
	return staticSettings(s)
}
