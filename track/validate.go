package track

import "strings"

// Per-track capacity from the ISO 7811 card geometry the device
// enforces.
var maxChars = map[int]int{
	1: 79,
	2: 40,
	3: 107,
}

const numericCharset = "0123456789:;<=>?%"

// Validate reports whether text fits the given track in the given
// format. Empty text is always invalid; length is checked in every
// format; character sets only apply to ISO.
func Validate(text string, number int, f Format) bool {
	max, ok := maxChars[number]
	if !ok || text == "" {
		return false
	}
	if len(text) > max {
		return false
	}
	if f != FormatISO {
		return true
	}
	if number == 1 {
		// Track 1 records the upper register band: space through
		// underscore.
		for i := 0; i < len(text); i++ {
			if text[i] < 0x20 || text[i] > 0x5F {
				return false
			}
		}
		return true
	}
	// Tracks 2 and 3 are numeric plus the ISO format characters.
	for _, c := range text {
		if !strings.ContainsRune(numericCharset, c) {
			return false
		}
	}
	return true
}
