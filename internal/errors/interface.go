// Package errors carries the coded errors shared by ecfanctl's packages.
// Each package lists its codes in its own errors.go; callers match them
// with HasCode, which sees through fmt.Errorf("%w") layers.
package errors

// ErrorCode identifies a failure class, e.g. "ec_out_of_range".
type ErrorCode string

// Error is a coded error. Data carries the offending value, such as an
// address or a level, and replaces any wrapped cause in Error().
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds coded errors. Use Wrap whenever there is a cause so the
// chain stays inspectable.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
