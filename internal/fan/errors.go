package fan

import "codeberg.org/mutker/ecfanctl/internal/errors"

const (
	ErrConfiguration   = errors.ErrorCode("fan_configuration_error")
	ErrNoSenseChannels = errors.ErrorCode("fan_no_sense_channels")
	ErrFanNotFound     = errors.ErrorCode("fan_not_found")
	ErrInvalidLevel    = errors.ErrInvalidArgument
)

type configData struct {
	Fan    string
	Reason string
}
