// Package fixedpoint converts decimal ASCII meter values to scaled
// integers. Cumulative counters drift when accumulated as floats, so
// every value in the system is carried as an integer scaled by a fixed
// power of ten.
package fixedpoint

// MicroDecimals is the full precision of Parse: 6 fractional digits.
const MicroDecimals = 6

var pow10 = [MicroDecimals + 1]int64{1, 10, 100, 1000, 10000, 100000, 1000000}

// Parse converts a decimal ASCII numeral to a fixed-point integer with
// the requested number of preserved fractional digits (0..6).
//
// The value is first decoded at full micro precision (integer*1e6 +
// up to 6 fractional digits, zero padded) and only then rescaled by a
// single division. Rescaling after the fact avoids the systematic bias
// of dropping input digits early.
//
// A leading '-' negates the result. Any other non-digit, non-'.' byte
// is skipped, which tolerates stray CR or whitespace. Input without
// digits yields 0. Parse never fails.
func Parse(s []byte, decimals int) int64 {
	if decimals < 0 {
		decimals = 0
	} else if decimals > MicroDecimals {
		decimals = MicroDecimals
	}

	var intPart, fracPart int64
	fracDigits := 0
	inFraction := false
	negative := false

	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= '0' && b <= '9':
			if inFraction {
				if fracDigits < MicroDecimals {
					fracPart = fracPart*10 + int64(b-'0')
					fracDigits++
				}
				// Digits beyond micro precision carry no information
				// we can represent; drop them.
			} else {
				intPart = intPart*10 + int64(b-'0')
			}
		case b == '.' && !inFraction:
			inFraction = true
		case b == '-' && i == 0:
			negative = true
		}
	}

	// Pad missing fractional digits up to micro precision.
	fracPart *= pow10[MicroDecimals-fracDigits]

	v := intPart*pow10[MicroDecimals] + fracPart
	v /= pow10[MicroDecimals-decimals]
	if negative {
		v = -v
	}
	return v
}

// ParseMicro decodes at full micro precision (scale 6).
func ParseMicro(s []byte) int64 {
	return Parse(s, MicroDecimals)
}
