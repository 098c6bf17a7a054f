package telemetry

import "codeberg.org/mutker/npumon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidSink   = errors.ErrorCode("telemetry_invalid_sink")
	ErrInvalidDBPath = errors.ErrorCode("telemetry_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("telemetry_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("telemetry_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("telemetry_schema_migration_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrorCode("telemetry_storage_init_failed")
	ErrStorageClose = errors.ErrorCode("telemetry_storage_close_failed")

	// Collection Errors
	ErrSinkWrite = errors.ErrSinkWrite
)
