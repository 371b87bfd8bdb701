package control

import (
	"fmt"
	"math"

	"codeberg.org/mutker/ecfanctl/internal/config"
	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
	"codeberg.org/mutker/ecfanctl/internal/fan"
)

// StepSize is the level change of Faster and Slower.
const StepSize = 0.1

type action int

const (
	actionLevel action = iota
	actionStep
	actionAuto
	actionManual
)

// Command is one change to apply to a set of fans.
type Command struct {
	action action
	value  float64
}

// Level sets an absolute speed level in [0, 1].
func Level(x float64) Command { return Command{action: actionLevel, value: x} }

// Step changes the current speed level by delta, clamped to [0, 1].
func Step(delta float64) Command { return Command{action: actionStep, value: delta} }

func Faster() Command { return Step(StepSize) }
func Slower() Command { return Step(-StepSize) }
func Auto() Command   { return Command{action: actionAuto} }
func Manual() Command { return Command{action: actionManual} }

func (c Command) String() string {
	switch c.action {
	case actionLevel:
		return fmt.Sprintf("level %.2f", c.value)
	case actionStep:
		return fmt.Sprintf("step %+.2f", c.value)
	case actionAuto:
		return "auto"
	case actionManual:
		return "manual"
	default:
		return "unknown"
	}
}

func (c Command) apply(f *fan.Fan) error {
	switch c.action {
	case actionLevel:
		return f.SetSpeed(c.value)
	case actionStep:
		level, err := f.SpeedLevel()
		if err != nil {
			return err
		}
		return f.SetSpeed(clamp(level+c.value, 0, 1))
	case actionAuto:
		return f.SetMode(ec.ModeAuto)
	case actionManual:
		return f.SetMode(ec.ModeManual)
	default:
		return errors.New().WithData(ErrInvalidCommand, c.action)
	}
}

// FromConfig turns the one-shot command options into a Command. Exactly one
// of level, mode and step may be set.
func FromConfig(cfg *config.Config) (Command, error) {
	errFactory := errors.New()

	var cmds []Command
	if cfg.Level != config.LevelUnset {
		cmds = append(cmds, Level(cfg.Level))
	}
	if cfg.Mode != "" {
		mode, err := ec.ParseMode(cfg.Mode)
		if err != nil {
			return Command{}, errFactory.Wrap(ErrInvalidCommand, err)
		}
		if mode == ec.ModeAuto {
			cmds = append(cmds, Auto())
		} else {
			cmds = append(cmds, Manual())
		}
	}
	if cfg.Step != 0 {
		cmds = append(cmds, Step(cfg.Step))
	}

	switch len(cmds) {
	case 0:
		return Command{}, errFactory.WithMessage(ErrInvalidCommand, "no fan command given")
	case 1:
		return cmds[0], nil
	default:
		return Command{}, errFactory.WithMessage(ErrInvalidCommand, "level, mode and step are mutually exclusive")
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
