package ec

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"codeberg.org/mutker/ecfanctl/internal/errors"
)

// Runner executes an external command. It exists so tests can observe the
// modprobe invocations without root.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.New().Wrap(ErrEnableWriteFail, err).WithData(msg)
		}
		return err
	}

	return nil
}

// EnableWriteSupport reloads the ec_sys module with write_support=1 so the
// register file accepts commits. A nil run uses os/exec.
func EnableWriteSupport(ctx context.Context, run Runner) error {
	if run == nil {
		run = execRunner
	}

	// Unloading fails harmlessly when the module is not loaded yet.
	_ = run(ctx, "modprobe", "-r", "ec_sys")

	if err := run(ctx, "modprobe", "ec_sys", "write_support=1"); err != nil {
		return errors.New().Wrap(ErrEnableWriteFail, err)
	}

	return nil
}
