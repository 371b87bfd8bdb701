package fan

import (
	"math"
	"sync"

	"codeberg.org/mutker/ecfanctl/internal/ec"
	"codeberg.org/mutker/ecfanctl/internal/errors"
)

// DefaultHistoryCapacity is the number of samples kept per history buffer.
const DefaultHistoryCapacity = 500

// Fan groups the registers of one cooling fan: mode selectors and actuation
// registers paired by index, tachometer-like sense registers and a single
// temperature register.
type Fan struct {
	name        string
	modes       []*ec.ModeSelector
	sense       []*ec.CalibratedRegister
	actuators   []*ec.CalibratedRegister
	temperature *ec.CalibratedRegister

	historyCap         int
	senseHistory       [][]int
	temperatureHistory []int
	mu                 sync.Mutex
}

// New builds a fan. Selector i forces actuation register i into manual mode,
// so both slices must have the same length.
func New(
	name string,
	modes []*ec.ModeSelector,
	sense, actuators []*ec.CalibratedRegister,
	temperature *ec.CalibratedRegister,
) (*Fan, error) {
	errFactory := errors.New()

	if len(modes) != len(actuators) {
		return nil, errFactory.WithData(ErrConfiguration, configData{
			Fan:    name,
			Reason: "mode and write register counts differ",
		})
	}
	if temperature == nil {
		return nil, errFactory.WithData(ErrConfiguration, configData{
			Fan:    name,
			Reason: "missing temperature register",
		})
	}

	return &Fan{
		name:         name,
		modes:        modes,
		sense:        sense,
		actuators:    actuators,
		temperature:  temperature,
		historyCap:   DefaultHistoryCapacity,
		senseHistory: make([][]int, len(sense)),
	}, nil
}

func (f *Fan) Name() string {
	return f.name
}

// Resolution returns the number of quantization steps used by the fan.
func (*Fan) Resolution() int {
	return Resolution
}

func (f *Fan) Modes() []*ec.ModeSelector {
	return f.modes
}

func (f *Fan) SenseRegisters() []*ec.CalibratedRegister {
	return f.sense
}

func (f *Fan) ActuationRegisters() []*ec.CalibratedRegister {
	return f.actuators
}

func (f *Fan) TemperatureRegister() *ec.CalibratedRegister {
	return f.temperature
}

func (f *Fan) HistoryCapacity() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyCap
}

// SetHistoryCapacity changes the history bound. Existing buffers are trimmed
// on the next sample.
func (f *Fan) SetHistoryCapacity(n int) error {
	if n < 1 {
		return errors.New().WithData(errors.ErrInvalidArgument, "history capacity must be at least 1")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCap = n

	return nil
}

func (f *Fan) ReadTemperature() (int, error) {
	return f.temperature.Read()
}

// SampleTemperatureHistory reads the temperature register once, appends the
// sample to the temperature history and returns a copy of the history.
func (f *Fan) SampleTemperatureHistory() ([]int, error) {
	t, err := f.ReadTemperature()
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.temperatureHistory = appendBounded(f.temperatureHistory, t, f.historyCap)

	return clone(f.temperatureHistory), nil
}

// ReadSpeeds reads every sense register in order.
func (f *Fan) ReadSpeeds() ([]int, error) {
	speeds := make([]int, len(f.sense))
	for i, r := range f.sense {
		v, err := r.Read()
		if err != nil {
			return nil, err
		}
		speeds[i] = v
	}

	return speeds, nil
}

// SampleSpeedHistory reads the sense registers once and appends one sample
// to each channel history. No buffer changes if any read fails.
func (f *Fan) SampleSpeedHistory() ([][]int, error) {
	speeds, err := f.ReadSpeeds()
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([][]int, len(f.senseHistory))
	for i := range f.senseHistory {
		f.senseHistory[i] = appendBounded(f.senseHistory[i], speeds[i], f.historyCap)
		out[i] = clone(f.senseHistory[i])
	}

	return out, nil
}

// SpeedLevel returns the mean quantized sense reading scaled to [0, 1].
// Readings outside a register's range can push it beyond that interval.
func (f *Fan) SpeedLevel() (float64, error) {
	if len(f.sense) == 0 {
		return 0, errors.New().WithData(ErrNoSenseChannels, f.name)
	}

	speeds, err := f.ReadSpeeds()
	if err != nil {
		return 0, err
	}

	var sum float64
	for i, r := range f.sense {
		sum += float64(MapValue(speeds[i], r.Min(), r.Max())) / Resolution
	}

	return sum / float64(len(f.sense)), nil
}

// SetSpeed switches every actuation channel to manual and writes level,
// quantized to Resolution steps, into its calibrated range. Nothing is
// committed.
func (f *Fan) SetSpeed(level float64) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return errors.New().WithData(ErrInvalidLevel, level)
	}

	target := int(level * Resolution)
	for i, w := range f.actuators {
		if err := f.modes[i].SetMode(ec.ModeManual); err != nil {
			return err
		}
		if err := w.Write(UnmapValue(target, w.Min(), w.Max())); err != nil {
			return err
		}
	}

	return nil
}

// SetMode applies mode to every selector. Writes made before a failure stay
// in memory.
func (f *Fan) SetMode(mode ec.Mode) error {
	for _, m := range f.modes {
		if err := m.SetMode(mode); err != nil {
			return err
		}
	}

	return nil
}

// Mode reads the selectors back. A fan whose selectors disagree, or hold
// neither configured value, reports ec.ModeUnknown.
func (f *Fan) Mode() (ec.Mode, error) {
	mode := ec.ModeUnknown
	for i, m := range f.modes {
		cur, err := m.Current()
		if err != nil {
			return ec.ModeUnknown, err
		}
		if i > 0 && cur != mode {
			return ec.ModeUnknown, nil
		}
		mode = cur
	}

	return mode, nil
}

func appendBounded(h []int, v, capacity int) []int {
	h = append(h, v)
	if len(h) > capacity {
		h = h[len(h)-capacity:]
	}

	return h
}

func clone(h []int) []int {
	out := make([]int, len(h))
	copy(out, h)

	return out
}
