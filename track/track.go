// Package track implements the MSR605X wire framing for magnetic
// stripe data: the escape/separator delimited write frame, the
// response decoder, and the per-track validation rules.
package track

import (
	"fmt"
	"strings"
)

// Sentinel bytes used throughout the device protocol.
const (
	ESC byte = 0x1B // command and track marker prefix
	FS  byte = 0x1C // field separator
)

// Format selects how track payloads are encoded and decoded.
type Format int

const (
	FormatISO Format = iota // printable text per ISO 7811
	FormatRaw               // arbitrary binary, hex-encoded for display
)

func (f Format) String() string {
	switch f {
	case FormatISO:
		return "iso"
	case FormatRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Data is one decoded track. Values are never mutated after decode.
type Data struct {
	Number int    // 1-3
	Text   string // decoded text, or hex in raw format
	Raw    []byte
	Valid  bool
	Format Format
	Err    string // validation detail when Valid is false
}

// Payload carries up to three tracks for a write. A nil or empty slice
// leaves the track blank; its markers are still emitted on the wire.
type Payload struct {
	Track1 []byte
	Track2 []byte
	Track3 []byte
}

// TextPayload builds a Payload from track strings.
func TextPayload(t1, t2, t3 string) Payload {
	return Payload{Track1: []byte(t1), Track2: []byte(t2), Track3: []byte(t3)}
}

// IsEmpty reports whether no track carries data.
func (p Payload) IsEmpty() bool {
	return len(p.Track1) == 0 && len(p.Track2) == 0 && len(p.Track3) == 0
}

func (p Payload) tracks() [3][]byte {
	return [3][]byte{p.Track1, p.Track2, p.Track3}
}

// FormatDisplay renders decoded tracks for human consumption.
func FormatDisplay(tracks []Data) string {
	var b strings.Builder
	for _, t := range tracks {
		status := "OK"
		if !t.Valid {
			status = "ERROR"
		}
		fmt.Fprintf(&b, "Track %d [%s]: %s\n", t.Number, status, t.Text)
		if t.Err != "" {
			fmt.Fprintf(&b, "  Error: %s\n", t.Err)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
