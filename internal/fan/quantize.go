package fan

// Resolution is the number of quantization steps between a register's
// calibrated minimum and maximum.
const Resolution = 50

// MapValue quantizes raw onto [0, Resolution] relative to [min, max]. The
// result is truncated toward zero, and raw values outside the range are not
// clamped, so the level can fall outside [0, Resolution].
func MapValue(raw, min, max int) int {
	return int(float64(raw-min) / float64(max-min) * Resolution)
}

// UnmapValue turns a level back into a raw value in [min, max], truncated
// toward zero. It inverts MapValue to within one quantization step.
func UnmapValue(level, min, max int) int {
	return int(float64(level*(max-min))/Resolution + float64(min))
}
