package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajeeshbabu/mahal-sync/internal/core/domain"
	"github.com/rajeeshbabu/mahal-sync/internal/core/ports/driven"
)

type mutableSettings struct {
	mu sync.Mutex
	s  domain.SyncSettings
}

func (m *mutableSettings) Settings() domain.SyncSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

func (m *mutableSettings) set(fn func(*domain.SyncSettings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.s)
}

func TestRemoteProvider_NotConfigured(t *testing.T) {
	built := 0
	p := NewRemoteProvider(StaticSettings(domain.DefaultSyncSettings()), func(domain.SyncSettings) (driven.RemoteStore, error) {
		built++
		return newFakeRemote(), nil
	})

	_, err := p.Store(p.Settings())
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.Zero(t, built)
}

func TestRemoteProvider_RebuildsOnChange(t *testing.T) {
	settings := &mutableSettings{s: configuredSettings()}
	built := 0
	p := NewRemoteProvider(settings, func(domain.SyncSettings) (driven.RemoteStore, error) {
		built++
		return newFakeRemote(), nil
	})

	first, err := p.Store(p.Settings())
	require.NoError(t, err)
	again, err := p.Store(p.Settings())
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, built)

	// The source layer alone does not change the client.
	settings.set(func(s *domain.SyncSettings) { s.Remote.Source = domain.SourceEnv })
	_, err = p.Store(p.Settings())
	require.NoError(t, err)
	assert.Equal(t, 1, built)

	settings.set(func(s *domain.SyncSettings) { s.Remote.APIKey = "rotated" })
	rotated, err := p.Store(p.Settings())
	require.NoError(t, err)
	assert.NotSame(t, first, rotated)
	assert.Equal(t, 2, built)

	settings.set(func(s *domain.SyncSettings) { s.RateLimit.Burst = 50 })
	_, err = p.Store(p.Settings())
	require.NoError(t, err)
	assert.Equal(t, 3, built)
}

func TestRemoteProvider_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	p := NewRemoteProvider(StaticSettings(configuredSettings()), func(domain.SyncSettings) (driven.RemoteStore, error) {
		return nil, boom
	})

	_, err := p.Store(p.Settings())
	assert.ErrorIs(t, err, boom)
}

func TestRemoteProvider_SettingsNormalised(t *testing.T) {
	p := NewRemoteProvider(StaticSettings(domain.SyncSettings{}), nil)

	s := p.Settings()
	assert.Equal(t, domain.DefaultMaxAttempts, s.Retry.MaxAttempts)
	assert.Equal(t, domain.DefaultRetention, s.Retention)
}
