package npu

// Backend is the device-management API the collector samples through. It
// is initialized once, lists its devices once and is shut down on exit.
type Backend interface {
	Name() string
	Init() error
	ListDevices() ([]Device, error)
	Shutdown() error
}

// Device is one accelerator as exposed by a Backend. Every read is a
// fallible call into the vendor library.
type Device interface {
	DeviceInfo() (DeviceInfo, error)
	PowerConsumption() (float64, error)
	DeviceTemperature() (Temperature, error)
	CoreUtilization() ([]PEUtilization, error)
}

// DeviceInfo describes a device. CoreNum is the number of processing
// elements reported by CoreUtilization.
type DeviceInfo struct {
	Name            string
	Arch            string
	CoreNum         int
	FirmwareVersion string
	PertVersion     string
}

// Temperature is a reading in degrees Celsius.
type Temperature struct {
	Ambient float64
	SocPeak float64
}

// PEUtilization is the usage of a single processing element.
type PEUtilization struct {
	Core            int
	UsagePercentage float64
}
