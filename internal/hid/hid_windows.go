//go:build windows

package hid

import (
	"time"

	gohid "github.com/sstallion/go-hid"
)

// Windows backend built on the hidapi bindings; hidapi already gives us
// timed reads so no reader pump is needed here.

type winManager struct{}

func newManager() (Manager, error) {
	if err := gohid.Init(); err != nil {
		return nil, err
	}
	return &winManager{}, nil
}

func (m *winManager) List(vendorID, productID uint16) ([]Info, error) {
	var out []Info
	err := gohid.Enumerate(vendorID, productID, func(info *gohid.DeviceInfo) error {
		out = append(out, Info{
			Path:         info.Path,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			SerialNumber: info.SerialNbr,
			Manufacturer: info.MfrStr,
			Product:      info.ProductStr,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *winManager) Open(info Info) (Device, error) {
	d, err := gohid.OpenPath(info.Path)
	if err != nil {
		return nil, err
	}
	return &winDevice{d: d}, nil
}

func (m *winManager) OpenVIDPID(vendorID, productID uint16) (Device, error) {
	d, err := gohid.OpenFirst(vendorID, productID)
	if err != nil {
		return nil, err
	}
	return &winDevice{d: d}, nil
}

type winDevice struct{ d *gohid.Device }

func (d *winDevice) Write(p []byte) (int, error) {
	// hidapi expects the report ID as the first byte, which matches
	// the Device contract.
	return d.d.Write(p)
}

func (d *winDevice) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	// hidapi reports a timed-out read as zero bytes, which matches
	// the Device contract.
	return d.d.ReadWithTimeout(p, timeout)
}

func (d *winDevice) Close() error { return d.d.Close() }
