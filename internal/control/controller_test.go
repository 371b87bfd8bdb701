package control_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/config"
	"codeberg.org/mutker/ecfanctl/internal/control"
	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/fan"
	"codeberg.org/mutker/ecfanctl/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cpuMode  = 0x93
	cpuWrite = 0x94
	cpuRead  = 0x95
	cpuTemp  = 0x68
	gpuMode  = 0x96
	gpuWrite = 0x97
	gpuRead  = 0x98
	gpuTemp  = 0x80
)

func fanConfigs() []config.FanConfig {
	return []config.FanConfig{
		{
			Name:  "CPU",
			Mode:  []config.ModeConfig{{Register: cpuMode, Manual: 0x14, Auto: 0x04}},
			Read:  []config.RangeConfig{{Register: cpuRead, Min: 0, Max: 100}},
			Write: []config.RangeConfig{{Register: cpuWrite, Min: 10, Max: 60}},
			Temp:  cpuTemp,
		},
		{
			Name:  "GPU",
			Mode:  []config.ModeConfig{{Register: gpuMode, Manual: 0x14, Auto: 0x04}},
			Read:  []config.RangeConfig{{Register: gpuRead, Min: 0, Max: 100}},
			Write: []config.RangeConfig{{Register: gpuWrite, Min: 10, Max: 60}},
			Temp:  gpuTemp,
		},
	}
}

type recorder struct {
	mu        sync.Mutex
	snapshots []*metrics.Snapshot
	err       error
	onRecord  func(n int)
}

func (r *recorder) Record(_ context.Context, s *metrics.Snapshot) error {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, s)
	n := len(r.snapshots)
	r.mu.Unlock()

	if r.onRecord != nil {
		r.onRecord(n)
	}

	return r.err
}

func (*recorder) Close() error { return nil }

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.snapshots)
}

func setup(t *testing.T, opts ...control.Option) (*control.Controller, *ec.MockRegisters) {
	t.Helper()

	regs := ec.NewMockRegisters(ec.DefaultSize)
	registry, err := fan.NewRegistry(fanConfigs(), regs, 100)
	require.NoError(t, err)

	return control.New(registry, regs, opts...), regs
}

func TestApplyLevelCommitsOnce(t *testing.T) {
	ctl, regs := setup(t)

	require.NoError(t, ctl.Apply(fan.AllFans, control.Level(0.5)))

	dev := regs.Device()
	assert.Equal(t, 1, regs.Commits())
	assert.Equal(t, byte(0x14), dev[cpuMode])
	assert.Equal(t, byte(35), dev[cpuWrite])
	assert.Equal(t, byte(0x14), dev[gpuMode])
	assert.Equal(t, byte(35), dev[gpuWrite])
}

func TestApplySingleFan(t *testing.T) {
	ctl, regs := setup(t)

	require.NoError(t, ctl.Apply("GPU", control.Level(1)))

	dev := regs.Device()
	assert.Equal(t, byte(0), dev[cpuWrite])
	assert.Equal(t, byte(60), dev[gpuWrite])
}

func TestApplyStepClamps(t *testing.T) {
	ctl, regs := setup(t)
	require.NoError(t, regs.SetDevice(cpuRead, 100))
	require.NoError(t, regs.SetDevice(gpuRead, 0))

	require.NoError(t, ctl.Apply("CPU", control.Faster()))
	require.NoError(t, ctl.Apply("GPU", control.Slower()))

	dev := regs.Device()
	assert.Equal(t, byte(60), dev[cpuWrite])
	assert.Equal(t, byte(10), dev[gpuWrite])
	assert.Equal(t, 2, regs.Commits())
}

func TestApplyModes(t *testing.T) {
	ctl, regs := setup(t)

	require.NoError(t, ctl.Apply(fan.AllFans, control.Manual()))
	assert.Equal(t, byte(0x14), regs.Device()[cpuMode])

	require.NoError(t, ctl.Apply(fan.AllFans, control.Auto()))
	dev := regs.Device()
	assert.Equal(t, byte(0x04), dev[cpuMode])
	assert.Equal(t, byte(0x04), dev[gpuMode])
}

func TestApplyFailureDoesNotCommit(t *testing.T) {
	ctl, regs := setup(t)

	err := ctl.Apply(fan.AllFans, control.Level(1.5))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, control.ErrApplyCommand))
	assert.Equal(t, 0, regs.Commits())

	err = ctl.Apply("FAN3", control.Auto())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, fan.ErrFanNotFound))
	assert.Equal(t, 0, regs.Commits())
}

func TestApplyKeepsCause(t *testing.T) {
	ctl, _ := setup(t)

	err := ctl.Apply("CPU", control.Level(1.5))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, control.ErrApplyCommand))
	assert.True(t, errors.HasCode(err, fan.ErrInvalidLevel))
	assert.Contains(t, err.Error(), `fan "CPU" level 1.50`)

	var appErr errors.Error
	require.True(t, errors.As(errors.Unwrap(err), &appErr))
	assert.Equal(t, fan.ErrInvalidLevel, appErr.Code())
	assert.Equal(t, 1.5, appErr.GetData())
}

func TestCycle(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := &recorder{}
	ctl, regs := setup(t, control.WithCollector(rec), control.WithClock(func() time.Time { return now }))

	require.NoError(t, regs.SetDevice(cpuTemp, 55))
	require.NoError(t, regs.SetDevice(cpuRead, 40))
	require.NoError(t, regs.SetDevice(gpuMode, 0x14))

	snapshot, err := ctl.Cycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, now, snapshot.Timestamp)
	require.Len(t, snapshot.Fans, 2)

	cpu := snapshot.Fans[0]
	assert.Equal(t, "CPU", cpu.Name)
	assert.Equal(t, 55, cpu.Temperature)
	assert.InDelta(t, 0.4, cpu.SpeedLevel, 1e-9)
	assert.Equal(t, []int{40}, cpu.Speeds)
	assert.Equal(t, "unknown", cpu.Mode)
	assert.Equal(t, "manual", snapshot.Fans[1].Mode)

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 0, regs.Commits())
}

func TestCycleIgnoresCollectorError(t *testing.T) {
	rec := &recorder{err: errors.New().New(metrics.ErrMetricsCollection)}
	ctl, _ := setup(t, control.WithCollector(rec))

	_, err := ctl.Cycle(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, rec.count())
}

func TestCycleCancelled(t *testing.T) {
	ctl, _ := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ctl.Cycle(ctx)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &recorder{onRecord: func(n int) {
		if n >= 3 {
			cancel()
		}
	}}
	ctl, _ := setup(t, control.WithCollector(rec))

	require.NoError(t, ctl.Run(ctx, 5*time.Millisecond))
	assert.GreaterOrEqual(t, rec.count(), 3)
}

func TestRunInvalidInterval(t *testing.T) {
	ctl, _ := setup(t)

	err := ctl.Run(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, control.ErrInvalidInterval))
}
