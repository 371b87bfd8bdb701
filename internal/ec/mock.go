package ec

import (
	"math"
	"sync"
	"time"
)

// DefaultSize is the register count of a typical EC address space.
const DefaultSize = 256

// MockRegisters simulates an EC device. Pending writes are held apart from
// the simulated device bytes until Commit, mirroring RegisterFile.
type MockRegisters struct {
	device  []byte
	pending []byte
	commits int

	wave    int
	hasWave bool
	clock   func() time.Time
	start   time.Time

	mu sync.Mutex
}

// MockOption configures a MockRegisters.
type MockOption func(*MockRegisters)

// WithWave makes address report a slow sine wave over the full byte range,
// like a sensor warming up and cooling down.
func WithWave(address int) MockOption {
	return func(m *MockRegisters) {
		m.wave = address
		m.hasWave = true
	}
}

// WithClock replaces the time source driving the wave register.
func WithClock(clock func() time.Time) MockOption {
	return func(m *MockRegisters) {
		m.clock = clock
	}
}

// NewMockRegisters returns a zeroed simulated device with size registers.
func NewMockRegisters(size int, opts ...MockOption) *MockRegisters {
	m := &MockRegisters{
		device:  make([]byte, size),
		pending: make([]byte, size),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.start = m.clock()

	return m
}

// SetDevice changes a byte on the simulated device side, as the EC firmware
// would. The change becomes visible after the next Refresh.
func (m *MockRegisters) SetDevice(address int, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkAddress(address, len(m.device)); err != nil {
		return err
	}
	m.device[address] = value

	return nil
}

// Device returns a copy of the simulated device bytes.
func (m *MockRegisters) Device() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]byte, len(m.device))
	copy(out, m.device)

	return out
}

// Commits returns how many times Commit has been called.
func (m *MockRegisters) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *MockRegisters) Len() int {
	return len(m.pending)
}

func (m *MockRegisters) Snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]byte, len(m.pending))
	copy(out, m.pending)
	if m.hasWave && m.wave >= 0 && m.wave < len(out) {
		out[m.wave] = m.waveValue()
	}

	return out
}

func (m *MockRegisters) Read(address int) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkAddress(address, len(m.pending)); err != nil {
		return 0, err
	}
	if m.hasWave && address == m.wave {
		return m.waveValue(), nil
	}

	return m.pending[address], nil
}

func (m *MockRegisters) Write(address int, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkAddress(address, len(m.pending)); err != nil {
		return err
	}
	if err := checkValue(address, value); err != nil {
		return err
	}
	m.pending[address] = byte(value)

	return nil
}

func (m *MockRegisters) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.pending, m.device)

	return nil
}

func (m *MockRegisters) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.device, m.pending)
	m.commits++

	return nil
}

func (m *MockRegisters) waveValue() byte {
	t := m.clock().Sub(m.start).Seconds()
	return byte(int(255 * (math.Sin(t/10) + 1) / 2))
}
