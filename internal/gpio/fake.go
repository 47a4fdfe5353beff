package gpio

import (
	"github.com/sweeney/intercom-node/internal/logic"
)

// Write is one recorded SetOutput call.
type Write struct {
	Pin logic.DrivePin
	On  bool
}

// FakeBoard is a test double for the relay board.
type FakeBoard struct {
	// Closed is the relay contact state returned by Feedback.
	Closed bool

	// Latching makes the fake behave like a bistable relay: energizing a coil
	// moves the contact and reports the edge through the Relay handler.
	Latching bool

	// Lines is the current level of the coil lines, indexed by logic.DrivePin.
	Lines [2]bool

	// Writes contains every SetOutput call in order.
	Writes []Write

	// Violations counts writes that left both coil lines high.
	Violations int

	// ReadError, if set, will be returned by Feedback().
	ReadError error

	// WriteError, if set, will be returned by SetOutput() after recording the write.
	WriteError error

	// BoardClosed tracks if Close was called.
	BoardClosed bool

	handlers Handlers
}

// NewFakeBoard creates a FakeBoard delivering edges to h.
func NewFakeBoard(h Handlers) *FakeBoard {
	return &FakeBoard{handlers: h}
}

// Feedback returns the scripted contact state.
func (f *FakeBoard) Feedback() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Closed, nil
}

// SetOutput records the write and, when Latching, moves the contact.
func (f *FakeBoard) SetOutput(pin logic.DrivePin, on bool) error {
	f.Writes = append(f.Writes, Write{Pin: pin, On: on})
	f.Lines[pin] = on
	if f.Lines[logic.PinClose] && f.Lines[logic.PinOpen] {
		f.Violations++
	}
	if f.WriteError != nil {
		return f.WriteError
	}

	if f.Latching && on {
		f.SetRelay(pin == logic.PinClose)
	}
	return nil
}

// SetRelay changes the contact state and reports the edge if it moved.
func (f *FakeBoard) SetRelay(closed bool) {
	if f.Closed == closed {
		return
	}
	f.Closed = closed
	if f.handlers.Relay != nil {
		f.handlers.Relay(closed)
	}
}

// SetBell reports a bell edge.
func (f *FakeBoard) SetBell(closed bool) {
	if f.handlers.Bell != nil {
		f.handlers.Bell(closed)
	}
}

// PressButton reports a button press.
func (f *FakeBoard) PressButton() {
	if f.handlers.Button != nil {
		f.handlers.Button()
	}
}

// High returns the coil lines that are currently high.
func (f *FakeBoard) High() []logic.DrivePin {
	var out []logic.DrivePin
	for pin, on := range f.Lines {
		if on {
			out = append(out, logic.DrivePin(pin))
		}
	}
	return out
}

// Close marks the board as closed.
func (f *FakeBoard) Close() error {
	f.BoardClosed = true
	return nil
}

// Reset clears recorded writes and line levels.
func (f *FakeBoard) Reset() {
	f.Writes = nil
	f.Lines = [2]bool{}
	f.Violations = 0
	f.BoardClosed = false
}
