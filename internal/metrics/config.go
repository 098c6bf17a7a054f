package metrics

import (
	"time"

	"codeberg.org/mutker/npumon/internal/errors"
)

const (
	defaultPath            = "/metrics"
	defaultShutdownTimeout = 5 * time.Second
)

type Config struct {
	// Addr is the listen address of the /metrics endpoint. Collection is
	// disabled when empty.
	Addr    string
	Path    string
	Enabled bool
}

func DefaultConfig() Config {
	return Config{
		Path:    defaultPath,
		Enabled: false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the endpoint if metrics is enabled
	if c.Enabled && c.Addr == "" {
		return errFactory.New(ErrInvalidAddr)
	}
	return nil
}
