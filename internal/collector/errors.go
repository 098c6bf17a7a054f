package collector

import "codeberg.org/mutker/npumon/internal/errors"

const (
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrAlreadyStarted  = errors.ErrorCode("collector_already_started")
	ErrSinkInit        = errors.ErrorCode("collector_sink_init_failed")
)
