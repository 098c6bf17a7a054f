package npu

import (
	"fmt"
	"math/rand"
	"sync"
)

const (
	simulatedArch     = "rngd"
	simulatedFirmware = "sim-1.0.0"
	simulatedPert     = "sim-pert-1.0.0"
)

// SimulatorConfig sizes the simulated fleet.
type SimulatorConfig struct {
	Devices int
	Cores   int
	Seed    int64
}

// Simulator is a Backend producing plausible, reproducible readings. It
// lets the collector run on hosts without accelerators.
type Simulator struct {
	cfg     SimulatorConfig
	devices []Device
	mu      sync.Mutex
	up      bool
}

// NewSimulator returns a simulator backend for cfg.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	return &Simulator{cfg: cfg}
}

func (*Simulator) Name() string {
	return "sim"
}

func (s *Simulator) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.up {
		return nil
	}

	s.devices = make([]Device, 0, s.cfg.Devices)
	for i := 0; i < s.cfg.Devices; i++ {
		s.devices = append(s.devices, &simulatedDevice{
			index: i,
			cores: s.cfg.Cores,
			rng:   rand.New(rand.NewSource(s.cfg.Seed + int64(i))), //nolint:gosec // simulated readings
		})
	}
	s.up = true

	return nil
}

func (s *Simulator) ListDevices() ([]Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.up {
		return nil, fmt.Errorf("simulator not initialized")
	}

	devices := make([]Device, len(s.devices))
	copy(devices, s.devices)

	return devices, nil
}

func (s *Simulator) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.up = false

	return nil
}

type simulatedDevice struct {
	index int
	cores int
	mu    sync.Mutex
	rng   *rand.Rand
}

func (d *simulatedDevice) DeviceInfo() (DeviceInfo, error) {
	return DeviceInfo{
		Name:            fmt.Sprintf("npu%d", d.index),
		Arch:            simulatedArch,
		CoreNum:         d.cores,
		FirmwareVersion: simulatedFirmware,
		PertVersion:     simulatedPert,
	}, nil
}

func (d *simulatedDevice) PowerConsumption() (float64, error) {
	return 35 + d.float()*45, nil
}

func (d *simulatedDevice) DeviceTemperature() (Temperature, error) {
	ambient := 30 + d.float()*10
	return Temperature{Ambient: ambient, SocPeak: ambient + 10 + d.float()*25}, nil
}

func (d *simulatedDevice) CoreUtilization() ([]PEUtilization, error) {
	usage := make([]PEUtilization, d.cores)
	for i := range usage {
		usage[i] = PEUtilization{Core: i, UsagePercentage: d.float() * 100}
	}

	return usage, nil
}

func (d *simulatedDevice) float() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Float64()
}
