package msr605x

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/samuelequaranta/go-msr605x/internal/hid"
	"github.com/samuelequaranta/go-msr605x/track"
)

// State is the session lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

type config struct {
	manager        hid.Manager
	statusCallback func(bool)
	swipeTimeout   time.Duration
	commandTimeout time.Duration
	pollInterval   time.Duration
}

// Option configures a Session at construction.
type Option func(*config)

// WithManager substitutes the HID manager, mainly for tests.
func WithManager(m hid.Manager) Option {
	return func(c *config) { c.manager = m }
}

// WithStatusCallback registers the connection state observer the UI
// layer uses to avoid polling. Cleared again by Close.
func WithStatusCallback(fn func(connected bool)) Option {
	return func(c *config) { c.statusCallback = fn }
}

// WithSwipeTimeout sets how long interactive operations wait for a
// card swipe.
func WithSwipeTimeout(d time.Duration) Option {
	return func(c *config) { c.swipeTimeout = d }
}

// WithCommandTimeout sets how long status and configuration commands
// wait for the device.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *config) { c.commandTimeout = d }
}

// WithPollInterval sets the per-poll wait used while accumulating a
// response.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) { c.pollInterval = d }
}

// Session is the façade the UI layer drives: one transport, one
// command catalog, one operation in flight at a time. Reentrant calls
// fail fast with Busy rather than queuing, because every interactive
// operation is bound to the single physical card slot.
type Session struct {
	transport *Transport
	commands  *Commands

	op    sync.Mutex
	state atomic.Int32
}

// NewSession builds a session over the OS HID layer, or over whatever
// manager an option substitutes.
func NewSession(opts ...Option) (*Session, error) {
	cfg := config{
		swipeTimeout:   DefaultSwipeTimeout,
		commandTimeout: DefaultCommandTimeout,
		pollInterval:   defaultPollInterval,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.manager == nil {
		m, err := hid.NewManager()
		if err != nil {
			return nil, err
		}
		cfg.manager = m
	}

	t := NewTransport(cfg.manager)
	t.pollInterval = cfg.pollInterval
	t.SetStatusCallback(cfg.statusCallback)

	c := NewCommands(t)
	c.swipeTimeout = cfg.swipeTimeout
	c.commandTimeout = cfg.commandTimeout

	return &Session{transport: t, commands: c}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// DeviceInfo returns the identity of the connected reader, or nil.
func (s *Session) DeviceInfo() *DeviceInfo {
	return s.transport.Info()
}

// Enumerate lists attached readers without opening any.
func (s *Session) Enumerate() ([]DeviceInfo, error) {
	return s.transport.Enumerate()
}

// Connect opens the reader at path, or the first one found when path
// is empty.
func (s *Session) Connect(path string) error {
	if !s.op.TryLock() {
		return ErrBusy
	}
	defer s.op.Unlock()
	if s.State() == StateConnected {
		return ErrAlreadyConnected
	}
	s.state.Store(int32(StateConnecting))
	if err := s.transport.Connect(path); err != nil {
		s.state.Store(int32(StateDisconnected))
		return err
	}
	s.state.Store(int32(StateConnected))
	return nil
}

// Disconnect closes the reader.
func (s *Session) Disconnect() error {
	if !s.op.TryLock() {
		return ErrBusy
	}
	defer s.op.Unlock()
	err := s.transport.Disconnect()
	s.state.Store(int32(StateDisconnected))
	return err
}

// Close disconnects if needed and clears the status observer.
func (s *Session) Close() error {
	var err error
	if s.State() == StateConnected {
		err = s.Disconnect()
	}
	s.transport.SetStatusCallback(nil)
	return err
}

// run enforces the rules shared by every command: fail fast when
// disconnected, one operation in flight at a time.
func (s *Session) run(op func() *Result) *Result {
	if !s.op.TryLock() {
		return failure(CodeBusy, "another operation is in progress")
	}
	defer s.op.Unlock()
	if s.State() != StateConnected {
		return failure(CodeNotConnected, "device not connected")
	}
	return op()
}

// Read waits for a swipe and decodes the card.
func (s *Session) Read(mode track.Format) *Result {
	return s.run(func() *Result { return s.commands.Read(mode, 0) })
}

// Write encodes the payload and waits for the committing swipe.
func (s *Session) Write(p track.Payload, mode track.Format) *Result {
	return s.run(func() *Result { return s.commands.Write(p, mode, 0) })
}

// Compare re-reads the card and diffs it against expected.
func (s *Session) Compare(p track.Payload, mode track.Format) *Result {
	return s.run(func() *Result { return s.commands.Compare(p, mode, 0) })
}

// WriteVerified writes and then re-reads the card to confirm the data
// took. The verification needs a second swipe, which is why the
// composition lives here rather than in the protocol layer.
func (s *Session) WriteVerified(p track.Payload, mode track.Format) *Result {
	return s.run(func() *Result {
		r := s.commands.Write(p, mode, 0)
		if !r.OK {
			return r
		}
		return s.commands.Compare(p, mode, 0)
	})
}

// Erase blanks the selected tracks on the next swipe.
func (s *Session) Erase(mask TrackMask) *Result {
	return s.run(func() *Result { return s.commands.Erase(mask) })
}

func (s *Session) SetCoercivity(co Coercivity) *Result {
	return s.run(func() *Result { return s.commands.SetCoercivity(co) })
}

func (s *Session) GetCoercivity() *Result {
	return s.run(func() *Result { return s.commands.GetCoercivity() })
}

func (s *Session) SetBPI(trackNum, bpi int) *Result {
	return s.run(func() *Result { return s.commands.SetBPI(trackNum, bpi) })
}

func (s *Session) SetBPC(trackNum, bits int) *Result {
	return s.run(func() *Result { return s.commands.SetBPC(trackNum, bits) })
}

func (s *Session) SetLeadingZeros(trackNum, count int) *Result {
	return s.run(func() *Result { return s.commands.SetLeadingZeros(trackNum, count) })
}

func (s *Session) TestCommunication() *Result {
	return s.run(func() *Result { return s.commands.TestCommunication() })
}

func (s *Session) TestRAM() *Result {
	return s.run(func() *Result { return s.commands.TestRAM() })
}

func (s *Session) TestSensor() *Result {
	return s.run(func() *Result { return s.commands.TestSensor() })
}

func (s *Session) FirmwareVersion() *Result {
	return s.run(func() *Result { return s.commands.FirmwareVersion() })
}

func (s *Session) Model() *Result {
	return s.run(func() *Result { return s.commands.Model() })
}

func (s *Session) Reset() *Result {
	return s.run(func() *Result { return s.commands.Reset() })
}

func (s *Session) LEDOn(color LEDColor) *Result {
	return s.run(func() *Result { return s.commands.LEDOn(color) })
}

func (s *Session) LEDOff() *Result {
	return s.run(func() *Result { return s.commands.LEDOff() })
}
