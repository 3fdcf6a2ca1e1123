package driven

import "time"

// ConfigStore provides persistent key-value configuration access. Keys use
// dot notation for nested sections (e.g. "cache.dir", "providers.disabled").
type ConfigStore interface {
	// Get retrieves a raw configuration value by key.
	Get(key string) (any, bool)

	// GetString retrieves a string value, or "" when absent or mistyped.
	GetString(key string) string

	// GetInt retrieves an integer value, or 0 when absent or mistyped.
	GetInt(key string) int

	// GetBool retrieves a boolean value, or false when absent or mistyped.
	GetBool(key string) bool

	// GetStringSlice retrieves a string slice value, or nil when absent.
	GetStringSlice(key string) []string

	// GetDuration retrieves a duration value parsed from its string form
	// (e.g. "30s"), or 0 when absent or unparseable.
	GetDuration(key string) time.Duration

	// Set stores a value and persists immediately.
	Set(key string, value any) error

	// Save persists the current configuration to disk.
	Save() error

	// Load reads configuration from disk.
	Load() error

	// Path returns the backing file path.
	Path() string
}
