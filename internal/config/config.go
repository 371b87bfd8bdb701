package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/ecfanctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultDevice        = "/sys/kernel/debug/ec/ec0/io"
	DefaultInterval      = 2
	DefaultMaxTemp       = 100
	DefaultHistoryLength = 500
	DefaultLogLevel      = "info"
	DefaultMetricsDB     = "/var/lib/ecfanctl/metrics.db"
	DefaultEnvPrefix     = "ECFANCTL"

	// LevelUnset marks the level flag as not given.
	LevelUnset = -1.0

	configName = "ecfanctl"
	configType = "toml"
	configDir  = "/etc"
)

type Config struct {
	Device        string      `mapstructure:"device"`
	Mock          bool        `mapstructure:"mock"`
	EnableWrite   bool        `mapstructure:"enable_write"`
	MaxTemp       int         `mapstructure:"max_temp"`
	Interval      int         `mapstructure:"interval"`
	HistoryLength int         `mapstructure:"history_length"`
	LogLevel      string      `mapstructure:"log_level"`
	Monitor       bool        `mapstructure:"monitor"`
	Metrics       bool        `mapstructure:"metrics"`
	MetricsDB     string      `mapstructure:"metrics_db"`
	Listen        string      `mapstructure:"listen"`
	PIDFile       string      `mapstructure:"pid_file"`
	Fans          []FanConfig `mapstructure:"fans"`

	// One-shot command
	Fan   string  `mapstructure:"fan"`
	Level float64 `mapstructure:"level"`
	Mode  string  `mapstructure:"mode"`
	Step  float64 `mapstructure:"step"`
}

// HasCommand reports whether a one-shot fan command was requested.
func (c *Config) HasCommand() bool {
	return c.Level != LevelUnset || c.Mode != "" || c.Step != 0
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("ecfanctl", pflag.ContinueOnError)

	fs.String("config", "", "Path to the configuration file")
	fs.String("device", DefaultDevice, "EC register device file")
	fs.Bool("mock", false, "Use a simulated register file instead of the device")
	fs.Bool("enable-write", false, "Reload ec_sys with write_support=1 before starting")
	fs.Int("max-temp", DefaultMaxTemp, "Upper calibration bound of every temperature register")
	fs.Int("interval", DefaultInterval, "Seconds between monitor cycles")
	fs.Int("history-length", DefaultHistoryLength, "Samples kept per history buffer")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("monitor", false, "Sample fans periodically until interrupted")
	fs.Bool("metrics", false, "Store samples in the metrics database")
	fs.String("metrics-db", DefaultMetricsDB, "Path to the metrics database")
	fs.String("listen", "", "Serve Prometheus metrics on this address")
	fs.String("pid-file", "", "PID file guarding against concurrent controllers")

	fs.String("fan", "*", `Fan to command, or "*" for all fans`)
	fs.Float64("level", LevelUnset, "Set the fan speed level (0.0 to 1.0)")
	fs.String("mode", "", "Set the fan mode (auto or manual)")
	fs.Float64("step", 0, "Change the fan speed level by this amount")

	return fs
}

// Load reads configuration from defaults, the configuration file, the
// environment and args, in increasing order of precedence.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	if bindErr != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, bindErr)
	}

	path := o.configPath
	if env := os.Getenv(o.envPrefix + "_CONFIG"); env != "" {
		path = env
	}
	if f := fs.Lookup("config"); f.Changed {
		path = f.Value.String()
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	if cfg.Fan == "" {
		cfg.Fan = "*"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the process-level settings. Fan register layouts are
// validated when the fan registry is built against a register file.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if c.MaxTemp <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "max_temp must be positive")
	}

	if c.HistoryLength <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "history_length must be positive")
	}

	if c.Device == "" && !c.Mock {
		return errFactory.WithData(errors.ErrMissingConfig, "device")
	}

	if c.Metrics && c.MetricsDB == "" {
		return errFactory.WithData(errors.ErrMissingConfig, "metrics_db")
	}

	if c.Level != LevelUnset && (c.Level < 0 || c.Level > 1) {
		return errFactory.WithData(errors.ErrInvalidArgument, "level must be within 0.0 and 1.0")
	}

	switch strings.ToLower(c.Mode) {
	case "", "auto", "manual":
	default:
		return errFactory.WithData(errors.ErrInvalidArgument, "mode must be auto or manual")
	}

	return nil
}
