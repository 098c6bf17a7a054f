package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/npumon/internal/collector"
	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/npu"
	"codeberg.org/mutker/npumon/internal/telemetry"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval   = collector.DefaultInterval
	DefaultBackend    = npu.BackendNVML
	DefaultSimDevices = 1
	DefaultSimCores   = 8
	DefaultSink       = telemetry.SinkCSV
	DefaultOutputDir  = "."
	DefaultLogLevel   = string(LogLevelInfo)

	defaultEnvPrefix  = "NPUMON"
	defaultConfigName = "npumon"
	systemConfigDir   = "/etc/npumon"
)

type Config struct {
	Interval    time.Duration
	Backend     string
	SimDevices  int
	SimCores    int
	Sink        string
	OutputDir   string
	Database    string
	Parallel    bool
	LogLevel    string
	MetricsAddr string
	PIDFile     string
	ConfigFile  string
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"interval":     "interval",
	"backend":      "backend",
	"sim-devices":  "sim_devices",
	"sim-cores":    "sim_cores",
	"sink":         "sink",
	"output-dir":   "output_dir",
	"database":     "database",
	"parallel":     "parallel",
	"log-level":    "log_level",
	"metrics-addr": "metrics_addr",
	"pid-file":     "pid_file",
}

// Load reads the configuration from defaults, the config file, the
// environment and args, in increasing order of precedence. args excludes
// the program name. pflag.ErrHelp is returned unwrapped when -h is given.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, err
		}
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	configPath := o.configPath
	if configPath == "" {
		configPath, _ = fs.GetString("config")
	}
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("npumon", pflag.ContinueOnError)

	fs.String("config", "", "Path to the configuration file")
	fs.Duration("interval", DefaultInterval, "Sampling interval")
	fs.String("backend", DefaultBackend, "Device backend (nvml, sim)")
	fs.Int("sim-devices", DefaultSimDevices, "Number of simulated devices")
	fs.Int("sim-cores", DefaultSimCores, "Processing elements per simulated device")
	fs.String("sink", DefaultSink, "Record destination (csv, sqlite)")
	fs.String("output-dir", DefaultOutputDir, "Directory for the CSV file or database")
	fs.String("database", "", "SQLite database path (default <output-dir>/npu_monitoring.db)")
	fs.Bool("parallel", false, "Sample the devices of a tick concurrently")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("metrics-addr", "", "Listen address for the Prometheus endpoint (disabled when empty)")
	fs.String("pid-file", "", "PID file path (default <tmp>/npumon.pid)")

	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval.String())
	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("sim_devices", DefaultSimDevices)
	v.SetDefault("sim_cores", DefaultSimCores)
	v.SetDefault("sink", DefaultSink)
	v.SetDefault("output_dir", DefaultOutputDir)
	v.SetDefault("database", "")
	v.SetDefault("parallel", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("pid_file", "")
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(defaultConfigName)
	v.AddConfigPath(systemConfigDir)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	interval, err := parseInterval(v.Get("interval"))
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrInvalidInterval, err)
	}

	return &Config{
		Interval:    interval,
		Backend:     strings.ToLower(v.GetString("backend")),
		SimDevices:  v.GetInt("sim_devices"),
		SimCores:    v.GetInt("sim_cores"),
		Sink:        strings.ToLower(v.GetString("sink")),
		OutputDir:   v.GetString("output_dir"),
		Database:    v.GetString("database"),
		Parallel:    v.GetBool("parallel"),
		LogLevel:    strings.ToLower(v.GetString("log_level")),
		MetricsAddr: v.GetString("metrics_addr"),
		PIDFile:     v.GetString("pid_file"),
		ConfigFile:  v.ConfigFileUsed(),
	}, nil
}

// parseInterval accepts a Go duration string or a plain number of seconds,
// from whichever source set it.
func parseInterval(value any) (time.Duration, error) {
	switch val := value.(type) {
	case time.Duration:
		return val, nil
	case int:
		return time.Duration(val) * time.Second, nil
	case int64:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	case string:
		if secs, err := strconv.ParseFloat(val, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return time.ParseDuration(val)
	default:
		return 0, fmt.Errorf("unsupported interval value %v", value)
	}
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval.String())
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	switch c.Backend {
	case npu.BackendNVML:
	case npu.BackendSimulator:
		if c.SimDevices < 1 || c.SimCores < 1 {
			return errFactory.WithData(errors.ErrInvalidConfig,
				fmt.Sprintf("simulator needs at least one device and core, got %d/%d", c.SimDevices, c.SimCores))
		}
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, "unknown backend "+c.Backend)
	}

	switch c.Sink {
	case telemetry.SinkCSV, telemetry.SinkSQLite:
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, "unknown sink "+c.Sink)
	}

	if c.OutputDir == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "output_dir is empty")
	}

	return nil
}

// PIDPath returns the configured PID file, or one in the temp directory.
func (c *Config) PIDPath() string {
	if c.PIDFile != "" {
		return c.PIDFile
	}
	return filepath.Join(os.TempDir(), defaultConfigName+".pid")
}
