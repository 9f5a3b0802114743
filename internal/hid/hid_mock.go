package hid

import (
	"sync"
	"time"
)

// MockDevice is a scripted in-memory Device for protocol tests. Writes
// are recorded; reads drain a queue of pre-loaded input reports.
type MockDevice struct {
	mu       sync.Mutex
	writes   [][]byte
	queue    [][]byte
	scripts  [][]byte
	closed   bool
	WriteErr error
}

func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

// Queue appends one input report to be returned by a later ReadTimeout.
func (m *MockDevice) Queue(report []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := make([]byte, len(report))
	copy(b, report)
	m.queue = append(m.queue, b)
}

// RespondWith queues one input report to be delivered after the next
// unconsumed write, mimicking a device that only answers once it has
// seen a command. Each write releases one scripted response, in order.
func (m *MockDevice) RespondWith(report []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := make([]byte, len(report))
	copy(b, report)
	m.scripts = append(m.scripts, b)
}

// Writes returns every report written so far, report ID byte included.
func (m *MockDevice) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *MockDevice) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	b := make([]byte, len(p))
	copy(b, p)
	m.writes = append(m.writes, b)
	if len(m.scripts) > 0 {
		m.queue = append(m.queue, m.scripts[0])
		m.scripts = m.scripts[1:]
	}
	return len(p), nil
}

func (m *MockDevice) ReadTimeout(p []byte, d time.Duration) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	if len(m.queue) == 0 {
		m.mu.Unlock()
		// Simulate the device staying quiet for the full wait.
		time.Sleep(d)
		return 0, nil
	}
	b := m.queue[0]
	m.queue = m.queue[1:]
	m.mu.Unlock()
	return copy(p, b), nil
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MockManager hands out a fixed device list and a single MockDevice.
type MockManager struct {
	Devices []Info
	Device  *MockDevice
	OpenErr error
}

func (m *MockManager) List(vendorID, productID uint16) ([]Info, error) {
	return m.Devices, nil
}

func (m *MockManager) Open(info Info) (Device, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return m.Device, nil
}

func (m *MockManager) OpenVIDPID(vendorID, productID uint16) (Device, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return m.Device, nil
}
