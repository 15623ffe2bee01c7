package display

import "math"

// Digits returns [tens(t), units(t), tens(h), units(h)].
func Digits(temperature, humidity float32) [4]uint8 {
	return [4]uint8{
		uint8(saturate(temperature/10) % 10),
		uint8(saturate(temperature) % 10),
		uint8(saturate(humidity/10) % 10),
		uint8(saturate(humidity) % 10),
	}
}

// saturate truncates v to an unsigned integer, clamping NaN and negative
// values to 0 and large values to MaxUint32.
func saturate(v float32) uint32 {
	if !(v > 0) {
		return 0
	}
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
