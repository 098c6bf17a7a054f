package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/npumon/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrSinkWrite)
	assert.Equal(t, "Failed to write record to sink", err.Error())

	wrapped := errFactory.Wrap(errors.ErrMetricRead, fmt.Errorf("NaN temperature"))
	assert.Equal(t, "Failed to read device metrics: NaN temperature", wrapped.Error())

	withData := errFactory.WithData(errors.ErrInvalidInterval, "-1s")
	assert.Equal(t, "Invalid interval value: -1s", withData.Error())

	assert.Equal(t, "custom", errFactory.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "unknown_code", errors.GetErrorMessage("unknown_code"))
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()
	inner := errFactory.New(errors.ErrDeviceEnumeration)
	outer := errFactory.Wrap(errors.ErrShutdownFailed, fmt.Errorf("startup: %w", inner))

	assert.True(t, errors.HasCode(outer, errors.ErrShutdownFailed))
	assert.True(t, errors.HasCode(outer, errors.ErrDeviceEnumeration))
	assert.False(t, errors.HasCode(outer, errors.ErrSinkWrite))
	assert.False(t, errors.HasCode(fmt.Errorf("plain"), errors.ErrInternal))
	assert.False(t, errors.HasCode(nil, errors.ErrInternal))
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("context: %w", errors.New().New(errors.ErrMetricRead))
	assert.Equal(t, errors.ErrMetricRead, errors.CodeOf(err))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(fmt.Errorf("plain")))
}

func TestWithMessagePreservesCode(t *testing.T) {
	err := errors.New().Wrap(errors.ErrSinkWrite, fmt.Errorf("disk full")).WithMessage("append failed")
	assert.Equal(t, errors.ErrSinkWrite, err.Code())
	assert.Equal(t, "append failed: disk full", err.Error())
	assert.EqualError(t, err.Unwrap(), "disk full")
}
