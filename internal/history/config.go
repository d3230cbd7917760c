package history

// Capacity is the maximum number of entries the cache retains.
const Capacity = 50

// DefaultKey is the persistence key holding the serialized history sequence.
const DefaultKey = "history"

// Config controls runtime settings for the history cache.
type Config struct {
	// Key under which the sequence is stored. Defaults to DefaultKey.
	Key string `json:"key,omitempty"`

	// MaxEntries caps the sequence length. Zero or anything above Capacity
	// means Capacity.
	MaxEntries int `json:"max_entries,omitempty"`
}

func (c *Config) key() string {
	if c == nil || c.Key == "" {
		return DefaultKey
	}
	return c.Key
}

func (c *Config) maxEntries() int {
	if c == nil || c.MaxEntries <= 0 || c.MaxEntries > Capacity {
		return Capacity
	}
	return c.MaxEntries
}
