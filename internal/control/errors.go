package control

import "codeberg.org/mutker/ecfanctl/internal/errors"

const (
	ErrApplyCommand    = errors.ErrApplyCommand
	ErrInvalidCommand  = errors.ErrInvalidArgument
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrCycle           = errors.ErrMainLoop
)
