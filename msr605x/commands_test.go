package msr605x

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samuelequaranta/go-msr605x/internal/hid"
	"github.com/samuelequaranta/go-msr605x/track"
)

func newTestCommands(t *testing.T, dev *hid.MockDevice) *Commands {
	t.Helper()
	tr := newTestTransport(dev)
	require.NoError(t, tr.Connect(""))
	c := NewCommands(tr)
	c.commandTimeout = 150 * time.Millisecond
	c.swipeTimeout = 300 * time.Millisecond
	return c
}

// isoReadResponse builds the frame the device returns after an ISO read
// swipe: ESC 's', three delimited tracks, end sentinel, success status.
func isoReadResponse(t1, t2, t3 string) []byte {
	resp := []byte{track.ESC, 's'}
	for i, data := range []string{t1, t2, t3} {
		resp = append(resp, track.ESC, byte(i+1))
		resp = append(resp, data...)
		resp = append(resp, track.FS)
	}
	return append(resp, '?', track.FS, track.ESC, '0')
}

func TestReadDecodesTracks(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith(isoReadResponse("%B4111^DOE/JOHN^2512?", ";4111=2512?", ";123?"))

	r := c.Read(track.FormatISO, 0)

	require.True(t, r.OK, r.Message)
	require.Len(t, r.Tracks, 3)
	require.Equal(t, "%B4111^DOE/JOHN^2512?", r.Tracks[0].Text)
	require.Equal(t, ";4111=2512?", r.Tracks[1].Text)
	require.True(t, r.Tracks[0].Valid)

	writes := dev.Writes()
	require.Len(t, writes, 1)
	require.Equal(t, []byte{track.ESC, 'r'}, writes[0][1:3], "ISO read command code")
}

func TestReadRawUsesRawCommand(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, 1, 0xAA, 0xBB, track.FS, track.ESC, '0'})

	r := c.Read(track.FormatRaw, 0)

	require.True(t, r.OK, r.Message)
	require.Equal(t, "aabb", r.Tracks[0].Text)
	require.Equal(t, []byte{track.ESC, 'm'}, dev.Writes()[0][1:3], "raw read command code")
}

func TestReadDeviceFailure(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, '1'})

	r := c.Read(track.FormatISO, 0)

	require.False(t, r.OK)
	require.Equal(t, CodeDeviceReported, r.Code)
}

func TestReadTimeout(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)

	r := c.Read(track.FormatISO, 100*time.Millisecond)

	require.False(t, r.OK)
	require.Equal(t, CodeTimeout, r.Code)
	require.Contains(t, r.Message, "no response")
}

func TestWriteBuildsFrame(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, '0'})

	r := c.Write(track.TextPayload("", ";4111=2512?", ""), track.FormatISO, 0)

	require.True(t, r.OK, r.Message)
	payload := dev.Writes()[0][1:]
	require.Equal(t, []byte{track.ESC, 'w', track.ESC, 's'}, payload[:4])
	want := append([]byte{track.ESC, 2}, []byte(";4111=2512?")...)
	require.NotEqual(t, -1, bytes.Index(payload, want))
}

func TestWriteEmptyPayloadRejected(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)

	r := c.Write(track.Payload{}, track.FormatISO, 0)

	require.False(t, r.OK)
	require.Equal(t, CodeValidationFailed, r.Code)
	require.Empty(t, dev.Writes(), "nothing must reach the device")
}

func TestWriteDeviceFailure(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, '1'})

	r := c.Write(track.TextPayload("%A?", "", ""), track.FormatISO, 0)

	require.False(t, r.OK)
	require.Equal(t, CodeDeviceReported, r.Code)
}

func TestCompareMatch(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith(isoReadResponse("%B4111^DOE^2512?", ";4111=2512?", ""))

	// Lowercase expected track 1 must still match: the device stores
	// the upper register.
	r := c.Compare(track.TextPayload("%b4111^doe^2512?", ";4111=2512?", ""), track.FormatISO, 0)

	require.True(t, r.OK, r.Message)
}

func TestCompareMismatch(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith(isoReadResponse("", ";4111=2512?", ""))

	r := c.Compare(track.TextPayload("", ";9999=2512?", ""), track.FormatISO, 0)

	require.False(t, r.OK)
	require.Equal(t, CodeValidationFailed, r.Code)
	require.Contains(t, r.Message, "track 2")
}

func TestErase(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, '0'})

	r := c.Erase(Track1 | Track3)

	require.True(t, r.OK, r.Message)
	payload := dev.Writes()[0][1:]
	require.Equal(t, []byte{track.ESC, 'c', byte(Track1 | Track3)}, payload[:3])
}

func TestSetCoercivity(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, '0'})
	dev.RespondWith([]byte{track.ESC, '0'})

	require.True(t, c.SetCoercivity(HiCo).OK)
	require.True(t, c.SetCoercivity(LoCo).OK)

	writes := dev.Writes()
	require.Equal(t, byte('x'), writes[0][2])
	require.Equal(t, byte('y'), writes[1][2])
}

func TestGetCoercivity(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, 'H', track.ESC, '0'})

	r := c.GetCoercivity()
	require.True(t, r.OK)
	require.Equal(t, "hi-co", r.Message)
}

func TestSetBPI(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, '0'})

	require.True(t, c.SetBPI(2, 210).OK)
	require.Equal(t, []byte{track.ESC, 'b', 0xD2}, dev.Writes()[0][1:4])

	r := c.SetBPI(2, 120)
	require.Equal(t, CodeValidationFailed, r.Code, "unsupported density")
}

func TestSetBPCSendsAllTracks(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, '0'})

	require.True(t, c.SetBPC(2, 7).OK)
	// Track 2 updated, tracks 1 and 3 keep their power-on defaults.
	require.Equal(t, []byte{track.ESC, 'o', 7, 7, 5}, dev.Writes()[0][1:6])

	require.Equal(t, CodeValidationFailed, c.SetBPC(2, 9).Code)
	require.Equal(t, CodeValidationFailed, c.SetBPC(4, 7).Code)
}

func TestSetLeadingZeros(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, '0'})

	require.True(t, c.SetLeadingZeros(2, 30).OK)
	// Tracks 1/3 keep the default, track 2 takes the new count.
	require.Equal(t, []byte{track.ESC, 'z', 61, 30}, dev.Writes()[0][1:5])
}

func TestCommunicationTest(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith([]byte{track.ESC, 'y'})

	require.True(t, c.TestCommunication().OK)

	dev.RespondWith([]byte{track.ESC, '1'})
	r := c.TestCommunication()
	require.False(t, r.OK)
	require.Equal(t, CodeDeviceReported, r.Code)
}

func TestFirmwareVersion(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)
	dev.RespondWith(append([]byte{track.ESC}, []byte("REV?U1.08")...))

	r := c.FirmwareVersion()

	require.True(t, r.OK, r.Message)
	require.Equal(t, "REV?U1.08", r.Firmware)
}

func TestSendOnlyCommands(t *testing.T) {
	dev := hid.NewMockDevice()
	c := newTestCommands(t, dev)

	// The device never answers reset or LED commands; these must not
	// wait for a response.
	start := time.Now()
	require.True(t, c.Reset().OK)
	require.True(t, c.LEDOn(LEDGreen).OK)
	require.True(t, c.LEDOff().OK)
	require.Less(t, time.Since(start), c.commandTimeout)

	writes := dev.Writes()
	require.Len(t, writes, 3)
	require.Equal(t, byte('a'), writes[0][2])
	require.Equal(t, byte(0x83), writes[1][2])
	require.Equal(t, byte(0x81), writes[2][2])
}
