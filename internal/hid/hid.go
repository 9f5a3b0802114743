// Package hid abstracts the OS HID layer behind a small device/manager
// interface pair so the transport can be tested against a mock and the
// platform backends can be swapped per build target.
package hid

import "time"

// Device represents an opened HID device capable of report I/O.
type Device interface {
	// Write sends one output report. p[0] must be the report ID.
	Write(p []byte) (int, error)

	// ReadTimeout reads one input report into p, waiting at most d.
	// It returns (0, nil) when nothing arrived before the deadline.
	ReadTimeout(p []byte, d time.Duration) (int, error)

	Close() error
}

// Info represents a HID device descriptor.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Manufacturer string
	Product      string
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List(vendorID, productID uint16) ([]Info, error)
	Open(info Info) (Device, error)
	OpenVIDPID(vendorID, productID uint16) (Device, error)
}

// NewManager returns the OS-specific HID manager.
func NewManager() (Manager, error) {
	return newManager()
}
