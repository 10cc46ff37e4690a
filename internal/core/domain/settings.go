package domain

import "time"

// Default sync policy values.
const (
	DefaultMaxAttempts     = 3
	DefaultRetryBaseDelay  = 30 * time.Second
	DefaultFetchBaseDelay  = 2 * time.Second
	DefaultFetchAttempts   = 3
	DefaultRetention       = 7 * 24 * time.Hour
	DefaultRequestsPerSec  = 10.0
	DefaultRequestBurst    = 5
	DefaultLogMaxSizeMB    = 10
	DefaultLogMaxBackups   = 3
	DefaultWebSocketListen = "127.0.0.1:7345"
)

// SettingsSource identifies the layer a credential was resolved from.
type SettingsSource string

// Settings sources, in resolution order.
const (
	SourceNone   SettingsSource = ""
	SourceFile   SettingsSource = "file"
	SourceEnv    SettingsSource = "env"
	SourceSystem SettingsSource = "system"
)

// String returns the string representation.
func (s SettingsSource) String() string {
	if s == SourceNone {
		return "unset"
	}
	return string(s)
}

// RemoteSettings holds the remote store endpoint and credentials.
type RemoteSettings struct {
	// BaseURL is the REST endpoint root, e.g. https://xyz.supabase.co/rest/v1.
	BaseURL string

	// APIKey is sent in the apikey header.
	APIKey string

	// BearerToken is sent as Authorization: Bearer. Falls back to APIKey.
	BearerToken string

	// TenantID identifies the owning principal for row isolation.
	TenantID string

	// Source records which layer supplied BaseURL and APIKey.
	Source SettingsSource
}

// IsConfigured reports whether both the base URL and the API key are set.
// An unconfigured engine is disabled, not broken.
func (r RemoteSettings) IsConfigured() bool {
	return r.BaseURL != "" && r.APIKey != ""
}

// Token returns the bearer credential, falling back to the API key.
func (r RemoteSettings) Token() string {
	if r.BearerToken != "" {
		return r.BearerToken
	}
	return r.APIKey
}

// RetrySettings holds the backoff policy.
type RetrySettings struct {
	// BaseDelay is the linear backoff unit for queue entries.
	BaseDelay time.Duration

	// MaxAttempts is the number of transient failures before an entry is FAILED.
	MaxAttempts int

	// FetchBaseDelay is the linear backoff unit between full-table fetch attempts.
	FetchBaseDelay time.Duration

	// FetchAttempts bounds the full-table fetch retries.
	FetchAttempts int
}

// RateLimitSettings throttles outbound requests.
type RateLimitSettings struct {
	RequestsPerSecond float64
	Burst             int
}

// LogSettings configures the optional rotating log file.
type LogSettings struct {
	// File is the log path. Empty logs to stderr only.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// SyncSettings holds everything the engine reads from configuration.
type SyncSettings struct {
	Remote    RemoteSettings
	Retry     RetrySettings
	RateLimit RateLimitSettings
	Log       LogSettings

	// Retention is how long DONE entries are kept before purge.
	Retention time.Duration

	// WebSocketListen is the address of the event hub in daemon mode.
	WebSocketListen string
}

// IsConfigured reports whether the remote endpoint is usable.
func (s SyncSettings) IsConfigured() bool {
	return s.Remote.IsConfigured()
}

// DefaultSyncSettings returns the policy defaults with no remote configured.
func DefaultSyncSettings() SyncSettings {
	return SyncSettings{
		Retry: RetrySettings{
			BaseDelay:      DefaultRetryBaseDelay,
			MaxAttempts:    DefaultMaxAttempts,
			FetchBaseDelay: DefaultFetchBaseDelay,
			FetchAttempts:  DefaultFetchAttempts,
		},
		RateLimit: RateLimitSettings{
			RequestsPerSecond: DefaultRequestsPerSec,
			Burst:             DefaultRequestBurst,
		},
		Log: LogSettings{
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
		},
		Retention:       DefaultRetention,
		WebSocketListen: DefaultWebSocketListen,
	}
}

// Normalise fills zero policy values with defaults.
func (s SyncSettings) Normalise() SyncSettings {
	d := DefaultSyncSettings()
	if s.Retry.BaseDelay <= 0 {
		s.Retry.BaseDelay = d.Retry.BaseDelay
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry.MaxAttempts = d.Retry.MaxAttempts
	}
	if s.Retry.FetchBaseDelay <= 0 {
		s.Retry.FetchBaseDelay = d.Retry.FetchBaseDelay
	}
	if s.Retry.FetchAttempts <= 0 {
		s.Retry.FetchAttempts = d.Retry.FetchAttempts
	}
	if s.RateLimit.RequestsPerSecond <= 0 {
		s.RateLimit.RequestsPerSecond = d.RateLimit.RequestsPerSecond
	}
	if s.RateLimit.Burst <= 0 {
		s.RateLimit.Burst = d.RateLimit.Burst
	}
	if s.Log.MaxSizeMB <= 0 {
		s.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if s.Log.MaxBackups <= 0 {
		s.Log.MaxBackups = d.Log.MaxBackups
	}
	if s.Retention <= 0 {
		s.Retention = d.Retention
	}
	if s.WebSocketListen == "" {
		s.WebSocketListen = d.WebSocketListen
	}
	return s
}
