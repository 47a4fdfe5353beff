//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/intercom-node/internal/logic"
)

// RealBoard drives the relay board through the Linux GPIO character device.
type RealBoard struct {
	chip     *gpiocdev.Chip
	close    *gpiocdev.Line
	open     *gpiocdev.Line
	feedback *gpiocdev.Line
	bell     *gpiocdev.Line
	button   *gpiocdev.Line
}

// NewRealBoard requests all board lines. Both coil lines start low.
func NewRealBoard(opts Options, h Handlers) (*RealBoard, error) {
	chip, err := gpiocdev.NewChip(opts.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	b := &RealBoard{chip: chip}

	if b.close, err = chip.RequestLine(opts.Pins.Close, gpiocdev.AsOutput(0)); err != nil {
		b.Close()
		return nil, fmt.Errorf("request close pin %d: %w", opts.Pins.Close, err)
	}
	if b.open, err = chip.RequestLine(opts.Pins.Open, gpiocdev.AsOutput(0)); err != nil {
		b.Close()
		return nil, fmt.Errorf("request open pin %d: %w", opts.Pins.Open, err)
	}

	// Normally-open contacts to 3V3 with pull-downs: high = closed.
	var relay, bell func(gpiocdev.LineEvent)
	if h.Relay != nil {
		relay = func(evt gpiocdev.LineEvent) { h.Relay(evt.Type == gpiocdev.LineEventRisingEdge) }
	}
	if h.Bell != nil {
		bell = func(evt gpiocdev.LineEvent) { h.Bell(evt.Type == gpiocdev.LineEventRisingEdge) }
	}
	if b.feedback, err = chip.RequestLine(opts.Pins.Feedback, inputOptions(opts.Debounce.Feedback, relay, true)...); err != nil {
		b.Close()
		return nil, fmt.Errorf("request feedback pin %d: %w", opts.Pins.Feedback, err)
	}
	if b.bell, err = chip.RequestLine(opts.Pins.Bell, inputOptions(opts.Debounce.Bell, bell, true)...); err != nil {
		b.Close()
		return nil, fmt.Errorf("request bell pin %d: %w", opts.Pins.Bell, err)
	}

	var button func(gpiocdev.LineEvent)
	if h.Button != nil {
		button = func(gpiocdev.LineEvent) { h.Button() }
	}
	if b.button, err = chip.RequestLine(opts.Pins.Button, inputOptions(opts.Debounce.Button, button, false)...); err != nil {
		b.Close()
		return nil, fmt.Errorf("request button pin %d: %w", opts.Pins.Button, err)
	}

	return b, nil
}

// inputOptions builds the request options of a pulled-down input. With a
// handler the line reports debounced edges, both of them or only presses.
func inputOptions(debounce time.Duration, handler func(gpiocdev.LineEvent), bothEdges bool) []gpiocdev.LineReqOption {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	if handler == nil {
		return opts
	}
	if bothEdges {
		opts = append(opts, gpiocdev.WithBothEdges)
	} else {
		opts = append(opts, gpiocdev.WithRisingEdge)
	}
	if debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}
	return append(opts, gpiocdev.WithEventHandler(handler))
}

// Feedback returns true when the relay contact is closed.
func (b *RealBoard) Feedback() (bool, error) {
	v, err := b.feedback.Value()
	if err != nil {
		return false, fmt.Errorf("read feedback pin: %w", err)
	}
	return v == 1, nil
}

// SetOutput drives one coil line.
func (b *RealBoard) SetOutput(pin logic.DrivePin, on bool) error {
	line := b.close
	if pin == logic.PinOpen {
		line = b.open
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set %s line: %w", pin, err)
	}
	return nil
}

// Close releases GPIO resources.
// Coil lines are driven low and returned to inputs with pull-down (matching
// Pi boot defaults) so no coil stays energized across a restart.
func (b *RealBoard) Close() error {
	var errs []error

	for _, l := range []*gpiocdev.Line{b.close, b.open} {
		if l == nil {
			continue
		}
		if err := l.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release coil line: %w", err))
		}
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure coil line: %w", err))
		}
	}
	for _, l := range []*gpiocdev.Line{b.close, b.open, b.feedback, b.bell, b.button} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
