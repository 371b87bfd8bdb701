package config

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// ModeConfig describes a mode-select register and the raw values that put
// its channel under manual or automatic control.
type ModeConfig struct {
	Register int `mapstructure:"register"`
	Manual   int `mapstructure:"manual"`
	Auto     int `mapstructure:"auto"`
}

// RangeConfig describes a calibrated register and its raw operating range.
type RangeConfig struct {
	Register int `mapstructure:"register"`
	Min      int `mapstructure:"min"`
	Max      int `mapstructure:"max"`
}

// FanConfig describes one fan. Mode and Write entries are paired by index.
type FanConfig struct {
	Name  string        `mapstructure:"name"`
	Mode  []ModeConfig  `mapstructure:"mode"`
	Read  []RangeConfig `mapstructure:"read"`
	Write []RangeConfig `mapstructure:"write"`
	Temp  int           `mapstructure:"temp"`
}

// Option defines a configuration option that can be passed to Load
type Option func(*options)

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "ECFANCTL"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}
