package logger

import "codeberg.org/mutker/ecfanctl/internal/errors"

// Logger is what the metrics and control packages log through. main passes
// Default(); tests pass Nop() or New(buf). The ec and fan packages never log.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	// ErrorWithCode attaches error_code and error_message fields.
	ErrorWithCode(err errors.Error) *LogEvent
}
