package driven

// ConfigStore is a flat key/value view over pda's settings. Keys are dotted
// paths ("llm.provider", "pipeline.job_timeout_minutes") regardless of how
// the backing store nests them.
type ConfigStore interface {
	// Get returns the raw value for key and whether it is set.
	Get(key string) (any, bool)

	// GetString returns key as a string, or "" when unset.
	GetString(key string) string

	// GetInt returns key as an int, or 0 when unset or not numeric.
	GetInt(key string) int

	// GetBool returns key as a bool, or false when unset.
	GetBool(key string) bool

	// GetStringSlice returns key as a list, or nil when unset.
	GetStringSlice(key string) []string

	// Set stores value under key and persists it.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path locates the backing store, for display.
	Path() string
}
