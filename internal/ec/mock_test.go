package ec_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRefreshAndCommit(t *testing.T) {
	regs := ec.NewMockRegisters(ec.DefaultSize)

	require.NoError(t, regs.SetDevice(5, 77))
	v, err := regs.Read(5)
	require.NoError(t, err)
	assert.Equal(t, byte(0), v, "device change visible before refresh")

	require.NoError(t, regs.Refresh())
	v, err = regs.Read(5)
	require.NoError(t, err)
	assert.Equal(t, byte(77), v)

	require.NoError(t, regs.Write(5, 12))
	require.NoError(t, regs.Refresh())
	v, err = regs.Read(5)
	require.NoError(t, err)
	assert.Equal(t, byte(77), v, "uncommitted write survived refresh")

	require.NoError(t, regs.Write(5, 12))
	require.NoError(t, regs.Commit())
	assert.Equal(t, byte(12), regs.Device()[5])
	assert.Equal(t, 1, regs.Commits())
}

func TestMockWave(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	regs := ec.NewMockRegisters(ec.DefaultSize, ec.WithWave(0), ec.WithClock(clock))

	v, err := regs.Read(0)
	require.NoError(t, err)
	assert.Equal(t, byte(127), v)

	// sin(t/10) == 0.5 at t = 10*pi/6 seconds
	now = now.Add(5235987756 * time.Nanosecond)
	v, err = regs.Read(0)
	require.NoError(t, err)
	assert.Equal(t, byte(191), v)
	assert.Equal(t, byte(191), regs.Snapshot()[0])
}

func TestEnableWriteSupport(t *testing.T) {
	var calls []string
	run := func(_ context.Context, name string, args ...string) error {
		calls = append(calls, name+" "+strings.Join(args, " "))
		if len(args) > 0 && args[0] == "-r" {
			return stderrors.New("module ec_sys is not currently loaded")
		}
		return nil
	}

	require.NoError(t, ec.EnableWriteSupport(context.Background(), run))
	assert.Equal(t, []string{
		"modprobe -r ec_sys",
		"modprobe ec_sys write_support=1",
	}, calls)
}

func TestEnableWriteSupportFailure(t *testing.T) {
	run := func(_ context.Context, _ string, _ ...string) error {
		return stderrors.New("operation not permitted")
	}

	err := ec.EnableWriteSupport(context.Background(), run)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ec.ErrEnableWriteFail))
}
