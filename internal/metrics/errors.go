package metrics

import "codeberg.org/mutker/npumon/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidAddr   = errors.ErrorCode("metrics_invalid_addr")

	// Service Errors
	ErrRegister        = errors.ErrorCode("metrics_register_failed")
	ErrListen          = errors.ErrorCode("metrics_listen_failed")
	ErrServiceShutdown = errors.ErrShutdownFailed
)
