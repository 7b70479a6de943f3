package cell

import "strconv"

// maxIntLen is the length of "-9223372036854775808".
const maxIntLen = 20

// parseCanonicalInt accepts exactly the strings strconv.FormatInt produces:
// an optional '-', no '+', no leading zeros, no "-0", and a value that fits
// in int64.
func parseCanonicalInt(b []byte) (int64, bool) {
	if len(b) == 0 || len(b) > maxIntLen {
		return 0, false
	}

	digits := b
	if digits[0] == '-' {
		digits = digits[1:]
		if len(digits) == 0 || digits[0] == '0' {
			return 0, false
		}
	}

	if len(digits) > 1 && digits[0] == '0' {
		return 0, false
	}

	for _, ch := range digits {
		if ch < '0' || ch > '9' {
			return 0, false
		}
	}

	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

func appendInt(dst []byte, v int64) []byte {
	return strconv.AppendInt(dst, v, 10)
}

func decimalLen(v int64) int {
	var stack [maxIntLen]byte

	return len(appendInt(stack[:0], v))
}
