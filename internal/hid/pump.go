package hid

import (
	"errors"
	"log/slog"
	"time"
)

// ErrClosed is returned by ReadTimeout once the device reader has stopped.
var ErrClosed = errors.New("hid: device closed")

// Pump turns a blocking per-report read function into a channel so
// ReadTimeout can select against a timer. read must return one input
// report per call and an error once the device is gone.
type Pump struct {
	reports chan []byte
}

func NewPump(read func() ([]byte, error)) *Pump {
	p := &Pump{reports: make(chan []byte, 32)}
	go func() {
		defer close(p.reports)
		for {
			buf, err := read()
			if err != nil {
				slog.Debug("hid reader stopped", slog.Any("error", err))
				return
			}
			b := make([]byte, len(buf))
			copy(b, buf)
			select {
			case p.reports <- b:
			default:
				slog.Warn("hid report buffer full, dropping report")
			}
		}
	}()
	return p
}

// ReadTimeout copies the next queued report into dst, waiting at most d.
// It returns (0, nil) when nothing arrived before the deadline.
func (p *Pump) ReadTimeout(dst []byte, d time.Duration) (int, error) {
	if d <= 0 {
		select {
		case b, ok := <-p.reports:
			if !ok {
				return 0, ErrClosed
			}
			return copy(dst, b), nil
		default:
			return 0, nil
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case b, ok := <-p.reports:
		if !ok {
			return 0, ErrClosed
		}
		return copy(dst, b), nil
	case <-t.C:
		return 0, nil
	}
}
