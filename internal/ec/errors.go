package ec

import "codeberg.org/mutker/ecfanctl/internal/errors"

const (
	// Addressing Errors
	ErrOutOfRange      = errors.ErrorCode("ec_out_of_range")
	ErrValueOutOfRange = errors.ErrorCode("ec_value_out_of_range")

	// Calibration Errors
	ErrInvalidCalibration = errors.ErrorCode("ec_invalid_calibration")
	ErrInvalidMode        = errors.ErrorCode("ec_invalid_mode")

	// Device Errors
	ErrDeviceIO        = errors.ErrorCode("ec_device_io_failed")
	ErrSizeChanged     = errors.ErrorCode("ec_device_size_changed")
	ErrEnableWriteFail = errors.ErrorCode("ec_enable_write_failed")
)

type addressData struct {
	Address int
	Size    int
}

type valueData struct {
	Address int
	Value   int
}

type calibrationData struct {
	Address int
	Min     int
	Max     int
}
