package track

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeWriteEmitsAllMarkers(t *testing.T) {
	// Markers for all three tracks appear even when nothing is populated.
	data := EncodeWrite(Payload{}, FormatISO)

	require.True(t, bytes.HasPrefix(data, []byte{ESC, 's'}))
	for n := byte(1); n <= 3; n++ {
		require.NotEqual(t, -1, bytes.Index(data, []byte{ESC, n}), "missing marker for track %d", n)
	}
	require.True(t, bytes.HasSuffix(data, []byte{'?', FS}))
}

func TestEncodeWriteTrack2Only(t *testing.T) {
	p := TextPayload("", ";4111111111111111=2512?", "")
	data := EncodeWrite(p, FormatISO)

	want := append([]byte{ESC, 2}, []byte(";4111111111111111=2512?")...)
	require.NotEqual(t, -1, bytes.Index(data, want), "track 2 marker must be followed by the literal text")

	require.True(t, bytes.HasSuffix(data, []byte{'?', FS}))
	body := data[:len(data)-2]
	require.Equal(t, 3, bytes.Count(body, []byte{FS}), "exactly three separators before the trailing ?FS")
}

func TestEncodeWriteUppercasesTrack1(t *testing.T) {
	iso := EncodeWrite(TextPayload("%b123^doe/john^?", "", ""), FormatISO)
	require.NotEqual(t, -1, bytes.Index(iso, []byte("%B123^DOE/JOHN^?")))

	raw := EncodeWrite(Payload{Track1: []byte("%b123?")}, FormatRaw)
	require.NotEqual(t, -1, bytes.Index(raw, []byte("%b123?")), "raw bytes pass through unmodified")
}

func TestEncodeWriteDeterministic(t *testing.T) {
	p := TextPayload("%ABC?", ";123?", ";321?")
	require.Equal(t, EncodeWrite(p, FormatISO), EncodeWrite(p, FormatISO))
}

func TestRoundTripISO(t *testing.T) {
	tests := []struct {
		name       string
		payload    Payload
		wantTracks map[int]string
	}{
		{
			name:    "all tracks",
			payload: TextPayload("%B4111111111111111^DOE/JOHN^2512?", ";4111111111111111=2512?", ";0123456789?"),
			wantTracks: map[int]string{
				1: "%B4111111111111111^DOE/JOHN^2512?",
				2: ";4111111111111111=2512?",
				3: ";0123456789?",
			},
		},
		{
			name:       "track 2 only",
			payload:    TextPayload("", ";12345?", ""),
			wantTracks: map[int]string{2: ";12345?"},
		},
		{
			name:       "track 1 upper-cased",
			payload:    TextPayload("%abc?", "", ""),
			wantTracks: map[int]string{1: "%ABC?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := DecodeResponse(EncodeWrite(tt.payload, FormatISO), FormatISO)
			got := make(map[int]string)
			for _, d := range decoded {
				if d.Valid {
					got[d.Number] = d.Text
				}
			}
			require.Equal(t, tt.wantTracks, got)
		})
	}
}

func TestRoundTripRaw(t *testing.T) {
	p := Payload{Track1: []byte{0x1A, 0x2B, 0x3C}, Track3: []byte{0x4D, 0x5E, 0x6F}}
	decoded := DecodeResponse(EncodeWrite(p, FormatRaw), FormatRaw)

	got := make(map[int]string)
	for _, d := range decoded {
		if d.Valid {
			got[d.Number] = d.Text
		}
	}
	require.Equal(t, map[int]string{1: "1a2b3c", 3: "4d5e6f"}, got)
	require.Equal(t, hex.EncodeToString(p.Track1), got[1])
}

func TestDecodeMissingTrackOmitted(t *testing.T) {
	resp := []byte{ESC, 2, ';', '1', '2', '?', FS}
	decoded := DecodeResponse(resp, FormatISO)

	require.Len(t, decoded, 1)
	require.Equal(t, 2, decoded[0].Number)
	require.Equal(t, ";12?", decoded[0].Text)
	require.True(t, decoded[0].Valid)
}

func TestDecodeEndFallbacks(t *testing.T) {
	tests := []struct {
		name string
		resp []byte
		want string
	}{
		{
			name: "next track marker",
			resp: []byte{ESC, 1, 'A', 'B', ESC, 2, 'C', 'D'},
			want: "AB",
		},
		{
			name: "status marker",
			resp: []byte{ESC, 1, 'A', 'B', ESC, '0'},
			want: "AB",
		},
		{
			name: "end of buffer",
			resp: []byte{ESC, 1, 'A', 'B'},
			want: "AB",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := DecodeResponse(tt.resp, FormatISO)
			require.NotEmpty(t, decoded)
			require.Equal(t, tt.want, decoded[0].Text)
		})
	}
}

// An escape byte inside raw track data without a separator makes the
// fallback search cut the segment short. This pins the known behavior
// rather than promising robustness for corrupted input.
func TestDecodeEscapeInsideRawSegment(t *testing.T) {
	resp := []byte{ESC, 1, 0xAA, ESC, 2, 0xBB}
	decoded := DecodeResponse(resp, FormatRaw)

	require.Len(t, decoded, 2)
	require.Equal(t, "aa", decoded[0].Text)
	require.Equal(t, "bb", decoded[1].Text)
}

func TestDecodeCleansControlCharacters(t *testing.T) {
	resp := []byte{ESC, 1, ' ', 'A', 0x00, 'B', 0x07, 'C', '\t', 'D', ' ', FS}
	decoded := DecodeResponse(resp, FormatISO)

	require.Len(t, decoded, 1)
	require.Equal(t, "ABC\tD", decoded[0].Text)
}

func TestDecodeInvalidCharactersFlagged(t *testing.T) {
	// Lowercase is outside the track 1 upper-register band.
	resp := []byte{ESC, 1, 'a', 'b', 'c', FS}
	decoded := DecodeResponse(resp, FormatISO)

	require.Len(t, decoded, 1)
	require.False(t, decoded[0].Valid)
	require.NotEmpty(t, decoded[0].Err)
}

func TestDecodeArbitraryBytesNeverPanics(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		{ESC},
		{ESC, 1},
		{ESC, 1, ESC, 2, ESC, 3},
		{FS, FS, FS},
		bytes.Repeat([]byte{ESC}, 100),
		{0xFF, 0xFE, ESC, 2, 0xFD, 0x00},
	}
	for _, in := range inputs {
		require.NotPanics(t, func() {
			DecodeResponse(in, FormatISO)
			DecodeResponse(in, FormatRaw)
		})
	}
}
