package ec

import (
	"strings"

	"codeberg.org/mutker/ecfanctl/internal/errors"
)

// Register is a typed handle onto one address of a shared register file.
// It holds no byte state of its own.
type Register struct {
	address int
	file    Registers
}

// NewRegister returns a handle for address, which must lie inside file.
func NewRegister(file Registers, address int) (Register, error) {
	if err := checkAddress(address, file.Len()); err != nil {
		return Register{}, err
	}

	return Register{address: address, file: file}, nil
}

func (r Register) Address() int {
	return r.address
}

// Read returns the in-memory raw value of the register.
func (r Register) Read() (int, error) {
	v, err := r.file.Read(r.address)
	if err != nil {
		return 0, err
	}

	return int(v), nil
}

// Write stores value in memory; it reaches the device on the next Commit.
func (r Register) Write(value int) error {
	return r.file.Write(r.address, value)
}

// Mode is the control mode of a fan channel.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeAuto
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseMode accepts "auto" or "manual", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return ModeAuto, nil
	case "manual":
		return ModeManual, nil
	default:
		return ModeUnknown, errors.New().WithData(ErrInvalidMode, s)
	}
}

// ModeSelector is a register switching a fan channel between EC-driven and
// host-driven control by writing one of two raw values.
type ModeSelector struct {
	Register
	manual int
	auto   int
}

func NewModeSelector(file Registers, address, manual, auto int) (*ModeSelector, error) {
	reg, err := NewRegister(file, address)
	if err != nil {
		return nil, err
	}
	if err := checkValue(address, manual); err != nil {
		return nil, err
	}
	if err := checkValue(address, auto); err != nil {
		return nil, err
	}

	return &ModeSelector{Register: reg, manual: manual, auto: auto}, nil
}

func (s *ModeSelector) ManualValue() int { return s.manual }
func (s *ModeSelector) AutoValue() int   { return s.auto }

// SetMode writes the raw value for mode. The write is not verified.
func (s *ModeSelector) SetMode(mode Mode) error {
	switch mode {
	case ModeAuto:
		return s.Write(s.auto)
	case ModeManual:
		return s.Write(s.manual)
	default:
		return errors.New().WithData(ErrInvalidMode, mode.String())
	}
}

// Current reads the register back and reports which mode value it holds.
// ModeUnknown means the byte matches neither configured value.
func (s *ModeSelector) Current() (Mode, error) {
	v, err := s.Read()
	if err != nil {
		return ModeUnknown, err
	}

	switch v {
	case s.manual:
		return ModeManual, nil
	case s.auto:
		return ModeAuto, nil
	default:
		return ModeUnknown, nil
	}
}

// CalibratedRegister carries the inclusive raw range [Min, Max] used to
// quantize the register.
type CalibratedRegister struct {
	Register
	min int
	max int
}

func NewCalibratedRegister(file Registers, address, min, max int) (*CalibratedRegister, error) {
	if min >= max {
		return nil, errors.New().WithData(ErrInvalidCalibration, calibrationData{Address: address, Min: min, Max: max})
	}

	reg, err := NewRegister(file, address)
	if err != nil {
		return nil, err
	}

	return &CalibratedRegister{Register: reg, min: min, max: max}, nil
}

func (c *CalibratedRegister) Min() int { return c.min }
func (c *CalibratedRegister) Max() int { return c.max }
