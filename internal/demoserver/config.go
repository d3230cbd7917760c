package demoserver

// Config holds configuration for the demo analysis service.
type Config struct {
	// Port is the port on which the demo server listens.
	Port int

	// MaxUploadBytes rejects larger uploads with 413.
	MaxUploadBytes int64

	// Findings is how many findings each analysis reports (default: 3).
	Findings int

	// InitialMode is the starting response mode (default: ModeOK).
	InitialMode Mode
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           5000,
		MaxUploadBytes: 25 << 20,
		Findings:       3,
		InitialMode:    ModeOK,
	}
}
