package npu

import (
	"fmt"
	"strconv"

	"codeberg.org/mutker/npumon/internal/errors"
)

// Handle is a read-only reference to one enumerated device. Index is the
// device's position in enumeration order and never changes during a run.
type Handle struct {
	Index  int
	Info   DeviceInfo
	Device Device
}

// DeviceSet is the immutable list of devices found at startup.
type DeviceSet struct {
	backend Backend
	handles []Handle
}

// Enumerate initializes the backend and takes a snapshot of its devices.
// Every failure, including an empty device list, is returned as an
// errors.ErrDeviceEnumeration error; the backend is shut down again in
// that case.
func Enumerate(backend Backend) (*DeviceSet, error) {
	errFactory := errors.New()

	if err := backend.Init(); err != nil {
		return nil, errFactory.Wrap(errors.ErrDeviceEnumeration, err)
	}

	set, err := enumerate(backend)
	if err != nil {
		if shutdownErr := backend.Shutdown(); shutdownErr != nil {
			err = fmt.Errorf("%w (shutdown: %v)", err, shutdownErr)
		}
		return nil, errFactory.Wrap(errors.ErrDeviceEnumeration, err)
	}

	return set, nil
}

func enumerate(backend Backend) (*DeviceSet, error) {
	errFactory := errors.New()

	devices, err := backend.ListDevices()
	if err != nil {
		return nil, errFactory.Wrap(ErrDeviceCount, err)
	}

	if len(devices) == 0 {
		return nil, errFactory.WithData(ErrNoDevices, backend.Name())
	}

	handles := make([]Handle, 0, len(devices))
	for i, device := range devices {
		info, err := device.DeviceInfo()
		if err != nil {
			return nil, errFactory.Wrap(ErrDeviceInfoFailed, err).WithMessage("device info unavailable for device " + strconv.Itoa(i))
		}
		handles = append(handles, Handle{Index: i, Info: info, Device: device})
	}

	return &DeviceSet{backend: backend, handles: handles}, nil
}

// Handles returns the devices in enumeration order.
func (s *DeviceSet) Handles() []Handle {
	handles := make([]Handle, len(s.handles))
	copy(handles, s.handles)

	return handles
}

// Len returns the number of devices.
func (s *DeviceSet) Len() int {
	return len(s.handles)
}

// Backend returns the name of the backend the devices came from.
func (s *DeviceSet) Backend() string {
	return s.backend.Name()
}

// Close shuts the backend down.
func (s *DeviceSet) Close() error {
	if err := s.backend.Shutdown(); err != nil {
		return errors.New().Wrap(ErrShutdownFailed, err)
	}

	return nil
}
