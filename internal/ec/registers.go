package ec

import (
	"io"
	"os"
	"sync"

	"codeberg.org/mutker/ecfanctl/internal/errors"
)

// DefaultDevice is the register file exposed by the ec_sys kernel module.
const DefaultDevice = "/sys/kernel/debug/ec/ec0/io"

// Registers is the capability set shared by the device-backed register file
// and its simulated counterpart.
type Registers interface {
	// Len returns the number of addressable registers.
	Len() int
	// Snapshot returns a copy of every in-memory register byte.
	Snapshot() []byte
	// Read returns the in-memory value at address.
	Read(address int) (byte, error)
	// Write sets the in-memory value at address without touching the device.
	Write(address int, value int) error
	// Refresh reloads every byte from the device, dropping uncommitted writes.
	Refresh() error
	// Commit flushes the full in-memory sequence to the device.
	Commit() error
}

// RegisterFile is an in-memory snapshot of an EC register device file.
type RegisterFile struct {
	path  string
	bytes []byte
	mu    sync.RWMutex
}

// NewRegisterFile loads the full snapshot of the device at path. The number
// of registers is fixed by this first load.
func NewRegisterFile(path string) (*RegisterFile, error) {
	data, err := load(path)
	if err != nil {
		return nil, err
	}

	return &RegisterFile{
		path:  path,
		bytes: data,
	}, nil
}

func load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New().Wrap(ErrDeviceIO, err)
	}

	return data, nil
}

// Path returns the device path backing the file.
func (f *RegisterFile) Path() string {
	return f.path
}

func (f *RegisterFile) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.bytes)
}

func (f *RegisterFile) Snapshot() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]byte, len(f.bytes))
	copy(out, f.bytes)

	return out
}

func (f *RegisterFile) Read(address int) (byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := checkAddress(address, len(f.bytes)); err != nil {
		return 0, err
	}

	return f.bytes[address], nil
}

func (f *RegisterFile) Write(address int, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := checkAddress(address, len(f.bytes)); err != nil {
		return err
	}
	if err := checkValue(address, value); err != nil {
		return err
	}

	f.bytes[address] = byte(value)

	return nil
}

func (f *RegisterFile) Refresh() error {
	data, err := load(f.path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) != len(f.bytes) {
		return errors.New().WithData(ErrSizeChanged, addressData{Size: len(data)})
	}
	f.bytes = data

	return nil
}

func (f *RegisterFile) Commit() error {
	errFactory := errors.New()

	f.mu.RLock()
	defer f.mu.RUnlock()

	// O_TRUNC is not used: the ec_sys io file has a fixed size and only
	// accepts writes at existing offsets.
	file, err := os.OpenFile(f.path, os.O_WRONLY, 0)
	if err != nil {
		return errFactory.Wrap(ErrDeviceIO, err)
	}

	n, err := file.WriteAt(f.bytes, 0)
	if err == nil && n < len(f.bytes) {
		err = io.ErrShortWrite
	}
	if err != nil {
		file.Close()
		return errFactory.Wrap(ErrDeviceIO, err)
	}

	if err := file.Close(); err != nil {
		return errFactory.Wrap(ErrDeviceIO, err)
	}

	return nil
}

func checkAddress(address, size int) error {
	if address < 0 || address >= size {
		return errors.New().WithData(ErrOutOfRange, addressData{Address: address, Size: size})
	}

	return nil
}

func checkValue(address, value int) error {
	if value < 0 || value > 0xff {
		return errors.New().WithData(ErrValueOutOfRange, valueData{Address: address, Value: value})
	}

	return nil
}
