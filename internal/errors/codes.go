package errors

// Common error codes
const (
	// System errors
	ErrInternal       ErrorCode = "internal_error"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Lifecycle errors
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Collection errors
	ErrDeviceEnumeration ErrorCode = "device_enumeration_failed"
	ErrMetricRead        ErrorCode = "metric_read_failed"
	ErrSinkWrite         ErrorCode = "sink_write_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidConfig:     "Invalid configuration",
	ErrReadConfig:        "Failed to read config file",
	ErrBindFlags:         "Failed to bind flags",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrShutdownFailed:    "Shutdown failed",
	ErrDeviceEnumeration: "Failed to enumerate devices",
	ErrMetricRead:        "Failed to read device metrics",
	ErrSinkWrite:         "Failed to write record to sink",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
