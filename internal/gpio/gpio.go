// Package gpio provides the relay board hardware with abstraction for testing.
// The real implementation uses the Linux GPIO character device, whose kernel
// debouncer turns the feedback, bell and button contacts into clean edges.
// The fake implementation allows testing without hardware.
package gpio

import (
	"time"

	"github.com/sweeney/intercom-node/internal/logic"
)

// Board drives the relay coils and reads the relay contact.
type Board interface {
	// Feedback returns true when the relay contact is closed.
	Feedback() (bool, error)

	// SetOutput drives one coil line.
	SetOutput(pin logic.DrivePin, on bool) error

	// Close releases GPIO resources.
	Close() error
}

var (
	_ Board = (*RealBoard)(nil)
	_ Board = (*FakeBoard)(nil)
)

// Handlers receive debounced input edges. They are called from a driver
// goroutine; nil handlers disable edge detection for that input.
type Handlers struct {
	Relay  func(closed bool)
	Bell   func(closed bool)
	Button func()
}

// Pins holds line offsets (BCM numbering).
type Pins struct {
	Close    int
	Open     int
	Feedback int
	Bell     int
	Button   int
}

// Debounce holds the settle period of each input.
type Debounce struct {
	Feedback time.Duration
	Bell     time.Duration
	Button   time.Duration
}

// Options configures a real board.
type Options struct {
	Chip     string
	Pins     Pins
	Debounce Debounce
}

// Pin definitions (BCM numbering)
const (
	DefaultPinClose    = 17 // relay coil, close direction
	DefaultPinOpen     = 27 // relay coil, open direction
	DefaultPinFeedback = 22 // relay auxiliary contact
	DefaultPinBell     = 23 // bell switch
	DefaultPinButton   = 24 // push button
)

// DefaultPins returns the wiring of the reference board.
func DefaultPins() Pins {
	return Pins{
		Close:    DefaultPinClose,
		Open:     DefaultPinOpen,
		Feedback: DefaultPinFeedback,
		Bell:     DefaultPinBell,
		Button:   DefaultPinButton,
	}
}
