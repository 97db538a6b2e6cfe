package geometry

import "math"

// SafeScale clamps a non-positive or NaN scale factor to 1.0 so conversion
// never divides by zero. Monitors report scale > 0 in practice; this guards
// against backends handing back junk.
func SafeScale(scale float64) float64 {
	if math.IsNaN(scale) || scale <= 0 {
		return 1.0
	}
	return scale
}

// ToLogical converts a physical pixel value to logical pixels, rounding
// half away from zero. With that rounding, ToPhysical(ToLogical(v)) == v
// for any v that is an exact multiple of the scale factor.
func ToLogical(v int, scale float64) int {
	return roundHalfAway(float64(v) / SafeScale(scale))
}

// ToPhysical converts a logical pixel value to physical pixels, rounding
// half away from zero.
func ToPhysical(v int, scale float64) int {
	return roundHalfAway(float64(v) * SafeScale(scale))
}

func roundHalfAway(f float64) int {
	if f >= 0 {
		return int(math.Floor(f + 0.5))
	}
	return int(math.Ceil(f - 0.5))
}
