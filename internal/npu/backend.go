package npu

import "codeberg.org/mutker/npumon/internal/errors"

// Backend names accepted by NewBackend.
const (
	BackendNVML      = "nvml"
	BackendSimulator = "sim"
)

// NewBackend returns the backend registered under name.
func NewBackend(name string, sim SimulatorConfig) (Backend, error) {
	switch name {
	case BackendNVML:
		return NewNVMLBackend(), nil
	case BackendSimulator:
		return NewSimulator(sim), nil
	default:
		return nil, errors.New().WithData(ErrUnknownBackend, name)
	}
}
