//go:build !windows

package hid

import (
	"time"

	usbhid "rafaelmartins.com/p/usbhid"
)

type usbManager struct{}

func newManager() (Manager, error) { return &usbManager{}, nil }

func (m *usbManager) List(vendorID, productID uint16) ([]Info, error) {
	devs, err := usbhid.Enumerate(func(d *usbhid.Device) bool {
		if vendorID != 0 && d.VendorId() != vendorID {
			return false
		}
		if productID != 0 && d.ProductId() != productID {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, Info{
			Path:         d.Path(),
			VendorID:     d.VendorId(),
			ProductID:    d.ProductId(),
			SerialNumber: d.SerialNumber(),
			Manufacturer: d.Manufacturer(),
			Product:      d.Product(),
		})
	}
	return out, nil
}

func (m *usbManager) Open(info Info) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.Path() == info.Path
	}, true, false)
	if err != nil {
		return nil, err
	}
	return newUSBDevice(d), nil
}

func (m *usbManager) OpenVIDPID(vendorID, productID uint16) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.VendorId() == vendorID && dev.ProductId() == productID
	}, true, false)
	if err != nil {
		return nil, err
	}
	return newUSBDevice(d), nil
}

// usbDevice pumps the library's blocking GetInputReport through a
// reader goroutine so ReadTimeout can honor short poll intervals.
type usbDevice struct {
	d *usbhid.Device
	p *Pump
}

func newUSBDevice(d *usbhid.Device) *usbDevice {
	return &usbDevice{
		d: d,
		p: NewPump(func() ([]byte, error) {
			_, buf, err := d.GetInputReport()
			return buf, err
		}),
	}
}

func (d *usbDevice) Write(p []byte) (int, error) {
	// p includes the report ID at p[0]; extract rid and data.
	if len(p) == 0 {
		return 0, nil
	}
	if err := d.d.SetOutputReport(p[0], p[1:]); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *usbDevice) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	return d.p.ReadTimeout(p, timeout)
}

func (d *usbDevice) Close() error { return d.d.Close() }
