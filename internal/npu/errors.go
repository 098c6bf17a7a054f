package npu

import (
	"codeberg.org/mutker/npumon/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	// Initialization and lifecycle errors
	ErrInitFailed       = errors.ErrorCode("npu_init_failed")
	ErrShutdownFailed   = errors.ErrorCode("npu_shutdown_failed")
	ErrNotInitialized   = errors.ErrorCode("npu_not_initialized")
	ErrUnknownBackend   = errors.ErrorCode("npu_unknown_backend")
	ErrDeviceNotFound   = errors.ErrorCode("npu_device_not_found")
	ErrDeviceCount      = errors.ErrorCode("npu_device_count_failed")
	ErrNoDevices        = errors.ErrorCode("npu_no_devices")
	ErrDeviceInfoFailed = errors.ErrorCode("npu_device_info_failed")

	// Read errors
	ErrTemperatureReadFailed = errors.ErrorCode("npu_temperature_read_failed")
	ErrPowerReadFailed       = errors.ErrorCode("npu_power_read_failed")
	ErrUtilizationReadFailed = errors.ErrorCode("npu_utilization_read_failed")
)

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
