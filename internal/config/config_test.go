package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/ecfanctl/internal/config"
	"codeberg.org/mutker/ecfanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
device = "/tmp/ec-io"
max_temp = 90
interval = 5
history_length = 120
log_level = "debug"
metrics = true
metrics_db = "/path/to/metrics.db"
listen = ":9120"

[[fans]]
name = "CPU"
temp = 0x68

  [[fans.mode]]
  register = 0x93
  manual = 0x14
  auto = 0x04

  [[fans.read]]
  register = 0x95
  min = 0
  max = 100

  [[fans.write]]
  register = 0x94
  min = 10
  max = 60

[[fans]]
name = "GPU"
temp = 0x80

  [[fans.mode]]
  register = 0x96
  manual = 0x14
  auto = 0x04

  [[fans.read]]
  register = 0x98
  min = 0
  max = 100

  [[fans.read]]
  register = 0x99
  min = 0
  max = 120

  [[fans.write]]
  register = 0x97
  min = 10
  max = 60
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "ecfanctl.toml", fullConfig)
	t.Setenv("ECFANCTL_CONFIG", path)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ec-io", cfg.Device)
	assert.Equal(t, 90, cfg.MaxTemp)
	assert.Equal(t, 5, cfg.Interval)
	assert.Equal(t, 120, cfg.HistoryLength)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Metrics)
	assert.Equal(t, "/path/to/metrics.db", cfg.MetricsDB)
	assert.Equal(t, ":9120", cfg.Listen)

	require.Len(t, cfg.Fans, 2)

	cpu := cfg.Fans[0]
	assert.Equal(t, "CPU", cpu.Name)
	assert.Equal(t, 0x68, cpu.Temp)
	assert.Equal(t, []config.ModeConfig{{Register: 0x93, Manual: 0x14, Auto: 0x04}}, cpu.Mode)
	assert.Equal(t, []config.RangeConfig{{Register: 0x95, Min: 0, Max: 100}}, cpu.Read)
	assert.Equal(t, []config.RangeConfig{{Register: 0x94, Min: 10, Max: 60}}, cpu.Write)

	gpu := cfg.Fans[1]
	assert.Len(t, gpu.Read, 2)
	assert.Equal(t, 120, gpu.Read[1].Max)

	assert.False(t, cfg.HasCommand())
	assert.Equal(t, "*", cfg.Fan)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ECFANCTL_CONFIG", "")

	cfg, err := config.Load([]string{})
	require.NoError(t, err)

	assert.Equal(t, config.DefaultDevice, cfg.Device)
	assert.Equal(t, config.DefaultInterval, cfg.Interval)
	assert.Equal(t, config.DefaultMaxTemp, cfg.MaxTemp)
	assert.Equal(t, config.DefaultHistoryLength, cfg.HistoryLength)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, config.LevelUnset, cfg.Level)
	assert.False(t, cfg.Metrics)
	assert.False(t, cfg.Mock)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "ecfanctl.toml", fullConfig)

	cfg, err := config.Load([]string{
		"--config", path,
		"--interval", "9",
		"--log-level", "warning",
		"--fan", "GPU",
		"--level", "0.5",
	})
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Interval)
	assert.Equal(t, "warning", cfg.LogLevel)
	assert.Equal(t, "GPU", cfg.Fan)
	assert.InDelta(t, 0.5, cfg.Level, 1e-9)
	assert.True(t, cfg.HasCommand())
	assert.Len(t, cfg.Fans, 2)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "ecfanctl.toml", fullConfig)
	t.Setenv("ECFANCTL_HISTORY_LENGTH", "42")

	cfg, err := config.Load(nil, config.WithConfigFile(path))
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.HistoryLength)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "ecfanctl.yaml", `
mock: true
max_temp: 80
fans:
  - name: CPU
    temp: 1
    mode:
      - {register: 2, manual: 20, auto: 4}
    read:
      - {register: 3, min: 0, max: 100}
    write:
      - {register: 4, min: 10, max: 60}
`)

	cfg, err := config.Load([]string{"--config", path})
	require.NoError(t, err)
	assert.True(t, cfg.Mock)
	require.Len(t, cfg.Fans, 1)
	assert.Equal(t, 20, cfg.Fans[0].Mode[0].Manual)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, "ecfanctl.toml", "This is not a valid TOML file\n")

	_, err := config.Load([]string{"--config", path})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load([]string{"--config", filepath.Join(t.TempDir(), "nope.toml")})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestUnknownFlag(t *testing.T) {
	_, err := config.Load([]string{"--turbo"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBindFlags))
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Device:        config.DefaultDevice,
			Interval:      1,
			MaxTemp:       100,
			HistoryLength: 10,
			LogLevel:      "info",
			Level:         config.LevelUnset,
		}
	}

	cases := map[string]struct {
		mutate func(*config.Config)
		code   errors.ErrorCode
	}{
		"interval":      {func(c *config.Config) { c.Interval = 0 }, errors.ErrInvalidInterval},
		"log level":     {func(c *config.Config) { c.LogLevel = "invalid" }, errors.ErrInvalidLogLevel},
		"max temp":      {func(c *config.Config) { c.MaxTemp = 0 }, errors.ErrInvalidConfig},
		"history":       {func(c *config.Config) { c.HistoryLength = -3 }, errors.ErrInvalidConfig},
		"device":        {func(c *config.Config) { c.Device = "" }, errors.ErrMissingConfig},
		"metrics db":    {func(c *config.Config) { c.Metrics = true }, errors.ErrMissingConfig},
		"level":         {func(c *config.Config) { c.Level = 1.5 }, errors.ErrInvalidArgument},
		"mode":          {func(c *config.Config) { c.Mode = "turbo" }, errors.ErrInvalidArgument},
		"negative zero": {func(c *config.Config) { c.Level = -0.2 }, errors.ErrInvalidArgument},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tc.code), err.Error())
		})
	}

	mock := valid()
	mock.Device = ""
	mock.Mock = true
	assert.NoError(t, mock.Validate())
}
