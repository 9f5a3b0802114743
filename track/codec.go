package track

import (
	"bytes"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// EncodeWrite builds the data block of a write command:
//
//	ESC 's' (ESC n payload FS) for tracks 1..3, then '?' FS
//
// All three track markers are emitted regardless of which tracks are
// populated. In ISO format track 1 is upper-cased first; the device
// only records the upper register on track 1. Raw bytes pass through
// untouched.
func EncodeWrite(p Payload, f Format) []byte {
	out := []byte{ESC, 's'}
	for i, t := range p.tracks() {
		out = append(out, ESC, byte(i+1))
		if f == FormatISO && i == 0 {
			t = bytes.ToUpper(t)
		}
		out = append(out, t...)
		out = append(out, FS)
	}
	out = append(out, '?', FS)
	return out
}

// DecodeResponse extracts per-track segments from a raw device
// response. Tracks without a start marker are omitted. Malformed input
// never fails; at worst a track comes back with Valid set to false.
func DecodeResponse(raw []byte, f Format) []Data {
	var out []Data
	for n := 1; n <= 3; n++ {
		if d, ok := extract(raw, n, f); ok {
			out = append(out, d)
		}
	}
	return out
}

func extract(raw []byte, number int, f Format) (Data, bool) {
	start := bytes.Index(raw, []byte{ESC, byte(number)})
	if start < 0 {
		return Data{}, false
	}
	seg := raw[start+2:]

	end := bytes.IndexByte(seg, FS)
	if end < 0 {
		// No separator. Fall back to the next track marker, then the
		// status marker, then end of buffer. Raw track data containing
		// a stray ESC can mis-segment here; pinned by the decoder tests.
		if next := bytes.Index(seg, []byte{ESC, byte(number + 1)}); next >= 0 {
			end = next
		} else if status := bytes.Index(seg, []byte{ESC, '0'}); status >= 0 {
			end = status
		} else {
			end = len(seg)
		}
	}
	segment := append([]byte(nil), seg[:end]...)

	if f == FormatRaw {
		return Data{
			Number: number,
			Text:   hex.EncodeToString(segment),
			Raw:    segment,
			Valid:  len(segment) > 0,
			Format: FormatRaw,
		}, true
	}

	text := cleanText(segment)
	d := Data{
		Number: number,
		Text:   text,
		Raw:    segment,
		Valid:  Validate(text, number, f),
		Format: f,
	}
	if !d.Valid {
		d.Err = "invalid characters in track data"
	}
	return d, true
}

// cleanText decodes a segment permissively: non-ASCII bytes are
// replaced rather than rejected, control characters other than tab are
// dropped along with stray escape bytes, and the result is trimmed.
func cleanText(segment []byte) string {
	var b strings.Builder
	for _, c := range segment {
		switch {
		case c == '\t':
			b.WriteByte(c)
		case c < 0x20:
			// control characters, stray escapes included, never
			// survive decoding
		case c < 0x80:
			b.WriteByte(c)
		default:
			b.WriteRune(utf8.RuneError)
		}
	}
	return strings.TrimSpace(b.String())
}
