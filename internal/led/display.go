// Package led drives the portal box's pixel strip, in either of the two
// physical forms the fleet uses: an SPI-addressed Dotstar/APA102
// strip animated tick-by-tick on this side, or a NeoPixel strip driven over
// UART by a microcontroller that understands the high-level ASCII command
// protocol itself. Both are exposed through the same Display interface so
// the session FSM never has to know which one it's talking to.
package led

import "time"

// Display is the capability set the session FSM drives: set a steady
// color, wipe a color on pixel-by-pixel, blink a fixed number of times,
// pulse indefinitely, and the wake/sleep pair used at session boundaries.
// SetColor, Wipe and Blink block until their effect has finished playing
// out; Pulse returns as soon as the effect has started, since by design it
// never finishes on its own.
type Display interface {
	SetColor(c Color) error
	Wipe(c Color, duration time.Duration) error
	Blink(c Color, duration time.Duration, flashes int) error
	Pulse(c Color) error

	// Sleep starts an indefinite pulse in sleepColor; Wake does nothing in
	// either driver and does not change what's on the strip — the next
	// explicit color command is what visibly wakes the display.
	Sleep(sleepColor Color) error
	Wake() error

	Close() error
}
