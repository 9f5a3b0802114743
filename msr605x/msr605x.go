// Package msr605x drives the MSR605X magnetic stripe reader/writer
// over its USB HID command protocol: fixed 64-byte reports carrying an
// escape-prefixed command set, with track data delimited by sentinel
// bytes rather than length prefixes.
//
// The package is synchronous by design. Interactive operations block
// the calling goroutine for up to their timeout because they wait on a
// physical card swipe; callers wanting asynchrony run them on their
// own goroutine and collect the Result.
package msr605x

import "time"

const (
	// USB identity of the MSR605X HID interface.
	VendorID  uint16 = 0x0801
	ProductID uint16 = 0x0003

	// ReportSize is one HID report: the report ID byte plus 63 payload
	// bytes, zero-padded on the right.
	ReportSize = 64

	reportID   = 0x00
	maxPayload = ReportSize - 1
)

// Default timeouts. Swipe operations wait on a human.
const (
	DefaultCommandTimeout = 3 * time.Second
	DefaultSwipeTimeout   = 15 * time.Second

	defaultPollInterval = 100 * time.Millisecond
	flushTimeout        = 50 * time.Millisecond
)
