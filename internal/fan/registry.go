package fan

import (
	"fmt"

	"codeberg.org/mutker/ecfanctl/internal/config"
	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
)

// AllFans selects every fan in Registry.Get.
const AllFans = "*"

// Registry holds the fans built from configuration, in configuration order.
type Registry struct {
	fans   []*Fan
	byName map[string]*Fan
}

// NewRegistry builds every configured fan on top of regs. Temperature
// registers are calibrated to [0, maxTemp].
func NewRegistry(fans []config.FanConfig, regs ec.Registers, maxTemp int) (*Registry, error) {
	errFactory := errors.New()

	if maxTemp <= 0 {
		return nil, errFactory.WithData(ErrConfiguration, configData{Reason: fmt.Sprintf("max_temp %d must be positive", maxTemp)})
	}

	r := &Registry{byName: make(map[string]*Fan, len(fans))}
	for _, fc := range fans {
		if fc.Name == "" || fc.Name == AllFans {
			return nil, errFactory.WithData(ErrConfiguration, configData{Fan: fc.Name, Reason: "invalid fan name"})
		}
		if _, dup := r.byName[fc.Name]; dup {
			return nil, errFactory.WithData(ErrConfiguration, configData{Fan: fc.Name, Reason: "duplicate fan name"})
		}

		f, err := build(fc, regs, maxTemp)
		if err != nil {
			return nil, err
		}

		r.fans = append(r.fans, f)
		r.byName[f.name] = f
	}

	return r, nil
}

func build(fc config.FanConfig, regs ec.Registers, maxTemp int) (*Fan, error) {
	errFactory := errors.New()
	fail := func(reason string) error {
		return errFactory.WithData(ErrConfiguration, configData{Fan: fc.Name, Reason: reason})
	}
	wrap := func(what string, err error) error {
		return errFactory.Wrap(ErrConfiguration, fmt.Errorf("fan %q %s: %w", fc.Name, what, err))
	}

	switch {
	case len(fc.Mode) == 0:
		return nil, fail("no mode registers")
	case len(fc.Read) == 0:
		return nil, fail("no read registers")
	case len(fc.Write) == 0:
		return nil, fail("no write registers")
	case len(fc.Mode) != len(fc.Write):
		return nil, fail(fmt.Sprintf("%d mode registers for %d write registers", len(fc.Mode), len(fc.Write)))
	}

	modes := make([]*ec.ModeSelector, 0, len(fc.Mode))
	for i, m := range fc.Mode {
		sel, err := ec.NewModeSelector(regs, m.Register, m.Manual, m.Auto)
		if err != nil {
			return nil, wrap(fmt.Sprintf("mode[%d]", i), err)
		}
		modes = append(modes, sel)
	}

	sense := make([]*ec.CalibratedRegister, 0, len(fc.Read))
	for i, rc := range fc.Read {
		reg, err := ec.NewCalibratedRegister(regs, rc.Register, rc.Min, rc.Max)
		if err != nil {
			return nil, wrap(fmt.Sprintf("read[%d]", i), err)
		}
		sense = append(sense, reg)
	}

	actuators := make([]*ec.CalibratedRegister, 0, len(fc.Write))
	for i, wc := range fc.Write {
		// every value UnmapValue can produce must fit in a register byte
		if wc.Min < 0 || wc.Max > 0xff {
			return nil, fail(fmt.Sprintf("write[%d] range [%d, %d] exceeds a byte", i, wc.Min, wc.Max))
		}
		reg, err := ec.NewCalibratedRegister(regs, wc.Register, wc.Min, wc.Max)
		if err != nil {
			return nil, wrap(fmt.Sprintf("write[%d]", i), err)
		}
		actuators = append(actuators, reg)
	}

	temp, err := ec.NewCalibratedRegister(regs, fc.Temp, 0, maxTemp)
	if err != nil {
		return nil, wrap("temp", err)
	}

	return New(fc.Name, modes, sense, actuators, temp)
}

// Fans returns every fan in configuration order.
func (r *Registry) Fans() []*Fan {
	out := make([]*Fan, len(r.fans))
	copy(out, r.fans)

	return out
}

// Get returns the named fan, or every fan for AllFans.
func (r *Registry) Get(name string) ([]*Fan, error) {
	if name == AllFans {
		return r.Fans(), nil
	}

	f, ok := r.byName[name]
	if !ok {
		return nil, errors.New().WithData(ErrFanNotFound, name)
	}

	return []*Fan{f}, nil
}

// SetHistoryCapacity applies n to every fan.
func (r *Registry) SetHistoryCapacity(n int) error {
	for _, f := range r.fans {
		if err := f.SetHistoryCapacity(n); err != nil {
			return err
		}
	}

	return nil
}
