package telemetry

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/logger"
)

const (
	// File system permissions and paths
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644

	SinkCSV    = "csv"
	SinkSQLite = "sqlite"

	defaultDBName = "npu_monitoring.db"
)

// Config selects and locates the sink for one run.
type Config struct {
	Kind      string
	OutputDir string
	DBPath    string
	Started   time.Time
}

func (c Config) Validate() error {
	errFactory := errors.New()

	switch c.Kind {
	case SinkCSV:
		if c.OutputDir == "" {
			return errFactory.WithData(ErrInvalidConfig, "output directory is empty")
		}
	case SinkSQLite:
		if c.DBPath == "" && c.OutputDir == "" {
			return errFactory.New(ErrInvalidDBPath)
		}
	default:
		return errFactory.WithData(ErrInvalidSink, c.Kind)
	}

	return nil
}

func (c Config) dbPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.OutputDir, defaultDBName)
}

// NewSink creates the configured sink and writes its header.
func NewSink(cfg Config, log logger.Logger) (Sink, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if cfg.Kind == SinkSQLite {
		sink, err := NewSQLiteSink(cfg.dbPath(), cfg.Started, log)
		if err != nil {
			return nil, err
		}
		return sink, nil
	}

	sink, err := NewCSVSink(cfg.OutputDir, cfg.Started)
	if err != nil {
		return nil, err
	}

	return sink, nil
}
