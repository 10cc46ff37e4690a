package driven

import "time"

// ConfigStore provides access to application configuration.
// Keys use dot notation, e.g. "remote.url".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string configuration value.
	// Returns empty string if key doesn't exist or isn't a string.
	GetString(key string) string

	// GetInt retrieves an integer configuration value.
	// Returns 0 if key doesn't exist or isn't numeric.
	GetInt(key string) int

	// GetFloat retrieves a numeric configuration value.
	GetFloat(key string) float64

	// GetBool retrieves a boolean configuration value.
	// Returns false if key doesn't exist or isn't a boolean.
	GetBool(key string) bool

	// GetDuration parses a duration string such as "30s".
	// Returns 0 if key doesn't exist or doesn't parse.
	GetDuration(key string) time.Duration

	// GetStringSlice retrieves a string slice configuration value.
	// Returns nil if key doesn't exist or isn't a slice.
	GetStringSlice(key string) []string

	// Keys lists every key, sorted.
	Keys() []string

	// Set stores a configuration value.
	// The value is persisted immediately.
	Set(key string, value any) error

	// Unset removes a key. Removing a missing key is not an error.
	Unset(key string) error

	// Save persists the current configuration to storage.
	Save() error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}

// Configuration keys.
const (
	KeyRemoteURL    = "remote.url"
	KeyRemoteAPIKey = "remote.api_key"
	KeyRemoteToken  = "remote.token"
	KeyRemoteTenant = "remote.tenant"

	KeyMaxAttempts    = "sync.max_attempts"
	KeyRetryBaseDelay = "sync.retry_base_delay"
	KeyFetchBaseDelay = "sync.fetch_base_delay"
	KeyFetchAttempts  = "sync.fetch_attempts"
	KeyRetention      = "sync.retention"

	KeyRequestsPerSecond = "rate_limit.requests_per_second"
	KeyRequestBurst      = "rate_limit.burst"

	KeyLogFile       = "log.file"
	KeyLogMaxSizeMB  = "log.max_size_mb"
	KeyLogMaxBackups = "log.max_backups"

	KeyDaemonListen = "daemon.listen"
)
