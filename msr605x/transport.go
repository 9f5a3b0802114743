package msr605x

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samuelequaranta/go-msr605x/internal/hid"
	"github.com/samuelequaranta/go-msr605x/internal/rawusb"
	"github.com/samuelequaranta/go-msr605x/track"
)

// DeviceInfo identifies one enumerated reader.
type DeviceInfo struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Manufacturer string
	Product      string
}

// Transport owns the HID connection and moves raw bytes; it knows
// nothing about command semantics. Every operation serializes through
// one mutex because the handle is process-wide shared state.
type Transport struct {
	mgr hid.Manager

	mu       sync.Mutex
	dev      hid.Device
	info     *DeviceInfo
	onStatus func(bool)

	pollInterval time.Duration
}

// NewTransport wraps a HID manager. Pass the result of hid.NewManager
// for real hardware or a mock for tests.
func NewTransport(mgr hid.Manager) *Transport {
	return &Transport{mgr: mgr, pollInterval: defaultPollInterval}
}

// SetStatusCallback registers the connection state observer. Pass nil
// to clear it.
func (t *Transport) SetStatusCallback(fn func(connected bool)) {
	t.mu.Lock()
	t.onStatus = fn
	t.mu.Unlock()
}

// notify is called with t.mu held.
func (t *Transport) notify(connected bool) {
	if t.onStatus != nil {
		t.onStatus(connected)
	}
}

// Connected reports whether a device handle is open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev != nil
}

// Info returns the cached identity of the connected device, or nil
// when disconnected.
func (t *Transport) Info() *DeviceInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.info == nil {
		return nil
	}
	cp := *t.info
	return &cp
}

// Enumerate lists attached readers. An empty list is not an error.
func (t *Transport) Enumerate() ([]DeviceInfo, error) {
	infos, err := t.mgr.List(VendorID, ProductID)
	if err != nil {
		return nil, err
	}
	out := make([]DeviceInfo, 0, len(infos))
	for _, d := range infos {
		out = append(out, DeviceInfo{
			Path:         d.Path,
			VendorID:     d.VendorID,
			ProductID:    d.ProductID,
			SerialNumber: d.SerialNumber,
			Manufacturer: d.Manufacturer,
			Product:      d.Product,
		})
	}
	return out, nil
}

// Connect opens the reader at path, or the first enumerated reader
// when path is empty. When the HID layer cannot open the device the
// raw USB fallback is tried before giving up.
func (t *Transport) Connect(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev != nil {
		return ErrAlreadyConnected
	}

	infos, err := t.mgr.List(VendorID, ProductID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	var pick *hid.Info
	for i := range infos {
		if path == "" || infos[i].Path == path {
			pick = &infos[i]
			break
		}
	}
	if pick == nil {
		return fmt.Errorf("%w: no reader found", ErrOpenFailed)
	}

	dev, err := t.mgr.Open(*pick)
	if err != nil {
		slog.Warn("hid open failed, trying raw usb", slog.Any("error", err))
		raw, rawErr := rawusb.Open(VendorID, ProductID)
		if rawErr != nil {
			return fmt.Errorf("%w: %v (raw usb: %v)", ErrOpenFailed, err, rawErr)
		}
		dev = raw
	}

	t.dev = dev
	t.info = &DeviceInfo{
		Path:         pick.Path,
		VendorID:     pick.VendorID,
		ProductID:    pick.ProductID,
		SerialNumber: pick.SerialNumber,
		Manufacturer: pick.Manufacturer,
		Product:      pick.Product,
	}
	slog.Info("device connected",
		slog.String("path", pick.Path),
		slog.String("product", pick.Product))
	t.notify(true)
	return nil
}

// Disconnect closes the handle and clears the cached identity. Any
// operation attempted afterwards fails with ErrNotConnected.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return ErrNotConnected
	}
	err := t.dev.Close()
	t.dev = nil
	t.info = nil
	slog.Info("device disconnected")
	t.notify(false)
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Send wraps payload in one fixed-size report: report ID 0x00 first,
// then the payload, zero-padded on the right to ReportSize.
func (t *Transport) Send(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return ErrNotConnected
	}
	if len(payload) > maxPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	report := make([]byte, ReportSize)
	report[0] = reportID
	copy(report[1:], payload)

	slog.Debug("send", slog.String("payload", hex.EncodeToString(payload)))
	n, err := t.dev.Write(report)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if n < 0 {
		return ErrWriteFailed
	}
	return nil
}

// Receive polls the device in short slices, accumulating bytes until a
// status sentinel (ESC '0' / ESC '1') or a field separator arrives, or
// timeout elapses. Trailing zero padding is stripped. A window with no
// bytes at all comes back as ErrTimeout so callers can tell "no
// response" from a protocol error.
func (t *Transport) Receive(timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return nil, ErrNotConnected
	}

	var response []byte
	buf := make([]byte, ReportSize)
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := t.pollInterval
		if wait > remaining {
			wait = remaining
		}
		n, err := t.dev.ReadTimeout(buf, wait)
		if err != nil {
			// The handle died mid-read; from the caller's view the
			// device is gone.
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		if n > 0 {
			response = append(response, buf[:n]...)
			if hasSentinel(response) {
				break
			}
		}
	}

	response = bytes.TrimRight(response, "\x00")
	if len(response) == 0 {
		return nil, ErrTimeout
	}
	slog.Debug("receive", slog.String("bytes", hex.EncodeToString(response)))
	return response, nil
}

// Flush drains stale queued reports. Best effort: it never fails the
// caller.
func (t *Transport) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dev == nil {
		return
	}
	buf := make([]byte, ReportSize)
	for {
		n, err := t.dev.ReadTimeout(buf, flushTimeout)
		if n <= 0 || err != nil {
			return
		}
		slog.Debug("flushed stale report", slog.Int("bytes", n))
	}
}

func hasSentinel(b []byte) bool {
	if bytes.Contains(b, []byte{track.ESC, '0'}) || bytes.Contains(b, []byte{track.ESC, '1'}) {
		return true
	}
	return bytes.IndexByte(b, track.FS) >= 0
}
