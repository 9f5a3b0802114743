// Package rawusb opens the reader over plain USB interrupt transfers.
// It backs up the HID layer on hosts where the hidraw interface cannot
// be opened (typically because a kernel driver still owns it) and
// satisfies the same device contract as internal/hid.
package rawusb

import (
	"fmt"
	"time"

	"github.com/karalabe/usb"

	"github.com/samuelequaranta/go-msr605x/internal/hid"
)

const reportSize = 64

// Device wraps a raw USB handle with 64-byte interrupt transfers.
type Device struct {
	dev  usb.Device
	pump *hid.Pump
}

// Open finds and opens the first device matching vid/pid.
func Open(vendorID, productID uint16) (*Device, error) {
	infos, err := usb.Enumerate(vendorID, productID)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("device not found (VID:0x%04X PID:0x%04X)", vendorID, productID)
	}

	dev, err := infos[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}

	d := &Device{dev: dev}
	d.pump = hid.NewPump(func() ([]byte, error) {
		buf := make([]byte, reportSize)
		n, err := dev.Read(buf)
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	})
	return d, nil
}

// Write sends one output report. The report ID byte is consumed here:
// raw endpoints carry the payload without it.
func (d *Device) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := d.dev.Write(p[1:])
	if err != nil {
		return 0, fmt.Errorf("usb write: %w", err)
	}
	return n + 1, nil
}

func (d *Device) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	return d.pump.ReadTimeout(p, timeout)
}

func (d *Device) Close() error {
	return d.dev.Close()
}
