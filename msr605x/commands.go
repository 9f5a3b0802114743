package msr605x

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samuelequaranta/go-msr605x/track"
)

// Command codes from the MSR605X programmer's protocol. Every command
// is ESC-prefixed.
var (
	cmdReset        = []byte{track.ESC, 'a'}
	cmdReadISO      = []byte{track.ESC, 'r'}
	cmdWriteISO     = []byte{track.ESC, 'w'}
	cmdReadRaw      = []byte{track.ESC, 'm'}
	cmdWriteRaw     = []byte{track.ESC, 'n'}
	cmdErase        = []byte{track.ESC, 'c'}
	cmdCommTest     = []byte{track.ESC, 'e'}
	cmdSensorTest   = []byte{track.ESC, 0x86}
	cmdRAMTest      = []byte{track.ESC, 0x87}
	cmdHiCo         = []byte{track.ESC, 'x'}
	cmdLoCo         = []byte{track.ESC, 'y'}
	cmdCoStatus     = []byte{track.ESC, 'd'}
	cmdSetBPI       = []byte{track.ESC, 'b'}
	cmdSetBPC       = []byte{track.ESC, 'o'}
	cmdLeadingZeros = []byte{track.ESC, 'z'}
	cmdFirmware     = []byte{track.ESC, 'v'}
	cmdModel        = []byte{track.ESC, 't'}
	cmdAllLEDOff    = []byte{track.ESC, 0x81}
	cmdAllLEDOn     = []byte{track.ESC, 0x82}
	cmdGreenLEDOn   = []byte{track.ESC, 0x83}
	cmdYellowLEDOn  = []byte{track.ESC, 0x84}
	cmdRedLEDOn     = []byte{track.ESC, 0x85}
)

// Status sentinels the device appends to responses.
var (
	statusOK   = []byte{track.ESC, '0'}
	statusFail = []byte{track.ESC, '1'}
)

// TrackMask selects tracks for erase.
type TrackMask byte

const (
	Track1 TrackMask = 1 << iota
	Track2
	Track3
	AllTracks = Track1 | Track2 | Track3
)

// Coercivity is the magnetic write field strength.
type Coercivity int

const (
	HiCo Coercivity = iota
	LoCo
)

func (c Coercivity) String() string {
	if c == LoCo {
		return "lo-co"
	}
	return "hi-co"
}

// LEDColor selects a front panel LED.
type LEDColor int

const (
	LEDGreen LEDColor = iota
	LEDYellow
	LEDRed
	LEDAll
)

// command pairs request bytes with the response policy for one device
// operation.
type command struct {
	name     string
	request  []byte
	timeout  time.Duration
	classify func(resp []byte) *Result
}

// Commands maps each high-level operation onto the byte protocol and
// classifies the outcome. It borrows the Transport per call and keeps
// no reference to the device handle.
type Commands struct {
	t *Transport

	// The device takes these settings for all tracks in one frame, so
	// the per-track setters keep the full set here. Defaults are the
	// device's power-on values.
	leadingZeros [2]byte // tracks 1 and 3 share the first slot
	bpc          [3]byte

	swipeTimeout   time.Duration
	commandTimeout time.Duration
}

func NewCommands(t *Transport) *Commands {
	return &Commands{
		t:              t,
		leadingZeros:   [2]byte{61, 22},
		bpc:            [3]byte{7, 5, 5},
		swipeTimeout:   DefaultSwipeTimeout,
		commandTimeout: DefaultCommandTimeout,
	}
}

// execute is the single path every request/response command goes
// through: drain stale bytes, send, wait for a sentinel-bearing
// response, classify.
func (c *Commands) execute(cmd command) *Result {
	c.t.Flush()
	if err := c.t.Send(cmd.request); err != nil {
		return failureErr(err)
	}
	resp, err := c.t.Receive(cmd.timeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			slog.Debug("command timed out", slog.String("command", cmd.name))
			return failure(CodeTimeout, "no response from device (card not swiped?)")
		}
		return failureErr(err)
	}
	slog.Debug("command response",
		slog.String("command", cmd.name),
		slog.String("bytes", hex.EncodeToString(resp)))
	return cmd.classify(resp)
}

// sendOnly covers the commands the device never replies to.
func (c *Commands) sendOnly(request []byte, okMsg string) *Result {
	if err := c.t.Send(request); err != nil {
		return failureErr(err)
	}
	return success(okMsg)
}

// statusOnly builds a classifier that accepts ESC '0' as success and
// treats anything else as an explicit device failure.
func statusOnly(okMsg string) func([]byte) *Result {
	return func(resp []byte) *Result {
		switch {
		case bytes.Contains(resp, statusOK):
			return success(okMsg)
		case bytes.Contains(resp, statusFail):
			return failure(CodeDeviceReported, "device reported failure")
		default:
			return failure(CodeDeviceReported,
				fmt.Sprintf("unexpected response: %s", hex.EncodeToString(resp)))
		}
	}
}

// Read waits for a swipe and decodes the card. The zero timeout means
// the configured swipe timeout.
func (c *Commands) Read(mode track.Format, timeout time.Duration) *Result {
	req := cmdReadISO
	if mode == track.FormatRaw {
		req = cmdReadRaw
	}
	if timeout <= 0 {
		timeout = c.swipeTimeout
	}
	return c.execute(command{
		name:    "read",
		request: req,
		timeout: timeout,
		classify: func(resp []byte) *Result {
			if bytes.Contains(resp, statusFail) {
				return failure(CodeDeviceReported, "device reported read failure")
			}
			tracks := track.DecodeResponse(resp, mode)
			if len(tracks) == 0 {
				return failure(CodeValidationFailed, "no track data in response")
			}
			anyValid := false
			for _, td := range tracks {
				if td.Valid {
					anyValid = true
					break
				}
			}
			if !anyValid {
				r := failure(CodeValidationFailed, "no valid track data on card")
				r.Tracks = tracks
				return r
			}
			r := success("card read")
			r.Tracks = tracks
			return r
		},
	})
}

// Write encodes the payload and waits for the swipe that commits it.
func (c *Commands) Write(p track.Payload, mode track.Format, timeout time.Duration) *Result {
	if p.IsEmpty() {
		return failure(CodeValidationFailed, "nothing to write")
	}
	req := cmdWriteISO
	if mode == track.FormatRaw {
		req = cmdWriteRaw
	}
	if timeout <= 0 {
		timeout = c.swipeTimeout
	}
	request := append(append([]byte{}, req...), track.EncodeWrite(p, mode)...)
	return c.execute(command{
		name:     "write",
		request:  request,
		timeout:  timeout,
		classify: statusOnly("card written"),
	})
}

// Compare re-reads the card and diffs each populated expected track
// against what came back. A mismatch is a validation failure, never a
// transport failure.
func (c *Commands) Compare(expected track.Payload, mode track.Format, timeout time.Duration) *Result {
	r := c.Read(mode, timeout)
	if !r.OK {
		return r
	}

	got := make(map[int]string, len(r.Tracks))
	for _, td := range r.Tracks {
		got[td.Number] = td.Text
	}
	for i, want := range [3][]byte{expected.Track1, expected.Track2, expected.Track3} {
		if len(want) == 0 {
			continue
		}
		text := string(want)
		switch {
		case mode == track.FormatRaw:
			text = hex.EncodeToString(want)
		case i == 0:
			// track 1 was upper-cased on the way in
			text = strings.ToUpper(text)
		}
		if got[i+1] != text {
			res := failure(CodeValidationFailed, fmt.Sprintf("track %d does not match", i+1))
			res.Tracks = r.Tracks
			return res
		}
	}
	res := success("card matches expected data")
	res.Tracks = r.Tracks
	return res
}

// Erase blanks the selected tracks on the next swipe.
func (c *Commands) Erase(mask TrackMask) *Result {
	return c.execute(command{
		name:     "erase",
		request:  append(append([]byte{}, cmdErase...), byte(mask)),
		timeout:  c.swipeTimeout,
		classify: statusOnly("tracks erased"),
	})
}

// SetCoercivity selects the write field strength.
func (c *Commands) SetCoercivity(co Coercivity) *Result {
	req, msg := cmdHiCo, "hi-co selected"
	if co == LoCo {
		req, msg = cmdLoCo, "lo-co selected"
	}
	return c.execute(command{
		name:     "set coercivity",
		request:  req,
		timeout:  c.commandTimeout,
		classify: statusOnly(msg),
	})
}

// GetCoercivity queries the current field strength setting; the device
// answers ESC 'H' or ESC 'L'.
func (c *Commands) GetCoercivity() *Result {
	return c.execute(command{
		name:    "coercivity status",
		request: cmdCoStatus,
		timeout: c.commandTimeout,
		classify: func(resp []byte) *Result {
			switch {
			case bytes.Contains(resp, []byte{track.ESC, 'H'}):
				return success("hi-co")
			case bytes.Contains(resp, []byte{track.ESC, 'L'}):
				return success("lo-co")
			default:
				return failure(CodeDeviceReported,
					fmt.Sprintf("unexpected response: %s", hex.EncodeToString(resp)))
			}
		},
	})
}

// BPI code bytes from the programmer's manual, keyed by track then
// density.
var bpiCodes = map[int]map[int]byte{
	1: {210: 0xA1, 75: 0xA0},
	2: {210: 0xD2, 75: 0x4B},
	3: {210: 0xC1, 75: 0xC0},
}

// SetBPI sets the recording density for one track; the device accepts
// 75 or 210 bpi.
func (c *Commands) SetBPI(trackNum, bpi int) *Result {
	code, ok := bpiCodes[trackNum][bpi]
	if !ok {
		return failure(CodeValidationFailed,
			fmt.Sprintf("unsupported density %d bpi for track %d", bpi, trackNum))
	}
	return c.execute(command{
		name:     "set bpi",
		request:  append(append([]byte{}, cmdSetBPI...), code),
		timeout:  c.commandTimeout,
		classify: statusOnly(fmt.Sprintf("track %d set to %d bpi", trackNum, bpi)),
	})
}

// SetBPC sets bits per character (5-8) for one track. The device takes
// all three values in one frame; unset tracks keep their cached value.
func (c *Commands) SetBPC(trackNum, bits int) *Result {
	if trackNum < 1 || trackNum > 3 {
		return failure(CodeValidationFailed, fmt.Sprintf("no such track %d", trackNum))
	}
	if bits < 5 || bits > 8 {
		return failure(CodeValidationFailed, fmt.Sprintf("bpc %d out of range 5-8", bits))
	}
	c.bpc[trackNum-1] = byte(bits)
	request := append(append([]byte{}, cmdSetBPC...), c.bpc[0], c.bpc[1], c.bpc[2])
	return c.execute(command{
		name:     "set bpc",
		request:  request,
		timeout:  c.commandTimeout,
		classify: statusOnly(fmt.Sprintf("track %d set to %d bpc", trackNum, bits)),
	})
}

// SetLeadingZeros sets the leading zero count written before track
// data. Tracks 1 and 3 share one setting on this device.
func (c *Commands) SetLeadingZeros(trackNum, count int) *Result {
	if trackNum < 1 || trackNum > 3 {
		return failure(CodeValidationFailed, fmt.Sprintf("no such track %d", trackNum))
	}
	if count < 0 || count > 255 {
		return failure(CodeValidationFailed, fmt.Sprintf("leading zero count %d out of range", count))
	}
	if trackNum == 2 {
		c.leadingZeros[1] = byte(count)
	} else {
		c.leadingZeros[0] = byte(count)
	}
	request := append(append([]byte{}, cmdLeadingZeros...), c.leadingZeros[0], c.leadingZeros[1])
	return c.execute(command{
		name:     "set leading zeros",
		request:  request,
		timeout:  c.commandTimeout,
		classify: statusOnly("leading zeros set"),
	})
}

// TestCommunication pings the device, which echoes ESC 'y'.
func (c *Commands) TestCommunication() *Result {
	return c.execute(command{
		name:    "communication test",
		request: cmdCommTest,
		timeout: c.commandTimeout,
		classify: func(resp []byte) *Result {
			if bytes.Contains(resp, []byte{track.ESC, 'y'}) {
				return success("communication ok")
			}
			return failure(CodeDeviceReported,
				fmt.Sprintf("unexpected echo: %s", hex.EncodeToString(resp)))
		},
	})
}

// TestRAM runs the device's RAM self test.
func (c *Commands) TestRAM() *Result {
	return c.execute(command{
		name:     "ram test",
		request:  cmdRAMTest,
		timeout:  c.commandTimeout,
		classify: statusOnly("ram ok"),
	})
}

// TestSensor checks the card sensing circuit. The device does not
// answer until a card passes the sensor, so this waits like a read.
func (c *Commands) TestSensor() *Result {
	return c.execute(command{
		name:     "sensor test",
		request:  cmdSensorTest,
		timeout:  c.swipeTimeout,
		classify: statusOnly("sensor ok"),
	})
}

// FirmwareVersion queries the firmware revision string.
func (c *Commands) FirmwareVersion() *Result {
	return c.execute(command{
		name:    "firmware version",
		request: cmdFirmware,
		timeout: c.commandTimeout,
		classify: func(resp []byte) *Result {
			v := strings.TrimSpace(string(stripMarkers(resp)))
			if v == "" {
				return failure(CodeDeviceReported, "empty firmware response")
			}
			r := success("firmware " + v)
			r.Firmware = v
			return r
		},
	})
}

// Model queries the device model; the device answers ESC, the model
// byte, then 'S'.
func (c *Commands) Model() *Result {
	return c.execute(command{
		name:    "model",
		request: cmdModel,
		timeout: c.commandTimeout,
		classify: func(resp []byte) *Result {
			m := strings.TrimSuffix(strings.TrimSpace(string(stripMarkers(resp))), "S")
			if m == "" {
				return failure(CodeDeviceReported, "empty model response")
			}
			r := success("model " + m)
			r.Model = m
			return r
		},
	})
}

// Reset returns the device to idle. No reply is sent.
func (c *Commands) Reset() *Result {
	return c.sendOnly(cmdReset, "device reset")
}

// LEDOn lights one front panel LED, or all of them. No reply is sent.
func (c *Commands) LEDOn(color LEDColor) *Result {
	req := cmdAllLEDOn
	switch color {
	case LEDGreen:
		req = cmdGreenLEDOn
	case LEDYellow:
		req = cmdYellowLEDOn
	case LEDRed:
		req = cmdRedLEDOn
	}
	return c.sendOnly(req, "led on")
}

// LEDOff turns all LEDs off. No reply is sent.
func (c *Commands) LEDOff() *Result {
	return c.sendOnly(cmdAllLEDOff, "leds off")
}

// stripMarkers drops escape bytes, separators and padding from a
// response, leaving printable payload.
func stripMarkers(resp []byte) []byte {
	out := make([]byte, 0, len(resp))
	for _, b := range resp {
		if b == track.ESC || b == track.FS || b == 0 {
			continue
		}
		out = append(out, b)
	}
	return out
}
