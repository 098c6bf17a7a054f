package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink stores records in a SQLite database. Every record is a
// single INSERT, so it is committed whole or not at all. Records of one
// run share run_started, which keeps runs apart in a shared database.
type SQLiteSink struct {
	db      *sql.DB
	path    string
	started time.Time
	logger  logger.Logger
	mu      sync.Mutex
}

// NewSQLiteSink opens (or creates) the database at path and brings its
// schema to SchemaVersion.
func NewSQLiteSink(path string, started time.Time, log logger.Logger) (*SQLiteSink, error) {
	errFactory := errors.New()

	if path == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  path,
			Error: err.Error(),
		})
	}

	dsn := path + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, filepath.Join(dir, "backups"), log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", path).
		Int("schema_version", SchemaVersion).
		Msg("SQLite sink initialized")

	return newSQLiteSink(db, path, started, log), nil
}

func newSQLiteSink(db *sql.DB, path string, started time.Time, log logger.Logger) *SQLiteSink {
	return &SQLiteSink{
		db:      db,
		path:    path,
		started: started,
		logger:  log,
	}
}

func (*SQLiteSink) Name() string {
	return SinkSQLite
}

func (s *SQLiteSink) Location() string {
	return s.path
}

func (s *SQLiteSink) Write(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, insertRecordSQL,
		s.started.UnixMilli(),
		record.Timestamp.UnixMilli(),
		record.DeviceIndex,
		record.Sample.AmbientTemperature,
		record.Sample.SocPeakTemperature,
		record.Sample.PowerWatts,
		record.Sample.AvgCoreUtilizationPercent,
	)
	if err != nil {
		return errors.New().Wrap(ErrSinkWrite, err)
	}

	return nil
}

func (s *SQLiteSink) Close() error {
	errFactory := errors.New()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to checkpoint WAL")
	}

	if err := s.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	s.logger.Info().Msg("SQLite sink closed gracefully")

	return nil
}
