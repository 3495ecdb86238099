package telegram

import "bytes"

// maxValueLen bounds an extracted value. DSMR values are far shorter in
// practice; the bound only guards against pathological lines.
const maxValueLen = 80

// extractValue returns the value substring of a `code(value)` or
// `code(value*unit)` line. The value ends at the first ')' or '*' after
// the opening paren, whichever comes first, so unit suffixes are never
// part of the numeric value. A line with no '(' or with an unterminated
// group has no value. The input is never mutated.
func extractValue(line []byte) ([]byte, bool) {
	open := bytes.IndexByte(line, '(')
	if open < 0 {
		return nil, false
	}
	rest := line[open+1:]
	end := -1
	for i := 0; i < len(rest); i++ {
		if rest[i] == ')' || rest[i] == '*' {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, false
	}
	v := rest[:end]
	if len(v) > maxValueLen {
		v = v[:maxValueLen]
	}
	return v, true
}

// parseHex16 reads exactly four hex digits as a big-endian uint16.
func parseHex16(s []byte) (uint16, bool) {
	if len(s) < 4 {
		return 0, false
	}
	var v uint16
	for i := 0; i < 4; i++ {
		d := hexDigit(s[i])
		if d == 0xFF {
			return 0, false
		}
		v = v<<4 | uint16(d)
	}
	return v, true
}

func hexDigit(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	}
	return 0xFF
}
