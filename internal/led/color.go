package led

import (
	"encoding/hex"
	"fmt"
)

// Color is an 8-bit-per-channel RGB value as used by the LED command
// vocabulary; brightness is tracked separately by the animation
// engine.
type Color struct {
	R, G, B byte
}

// Palette colors used by the session FSM, taken verbatim from the
// hard-coded constants in the original service (service.py: RED, GREEN,
// YELLOW, BLUE, ORANGE) plus the trainer color introduced for the
// training workflow.
var (
	Black  = Color{0x00, 0x00, 0x00}
	Red    = Color{0xFF, 0x00, 0x00}
	Green  = Color{0x00, 0xFF, 0x00}
	Yellow = Color{0xFF, 0xFF, 0x00}
	Blue   = Color{0x00, 0x00, 0xFF}
	Orange = Color{0xDF, 0x20, 0x00}
	Purple = Color{0x80, 0x00, 0x80}

	// ShutdownDim is the dim dark-red steady color the driver falls back
	// to on SIGINT/SIGTERM before exiting.
	ShutdownDim = Color{0x20, 0x00, 0x00}
)

func (c Color) isBlack() bool {
	return c == Black
}

// ParseColor parses a 6-digit RRGGBB hex string, as used by config.Display's
// sleep_color key, into a Color.
func ParseColor(s string) (Color, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 3 {
		return Color{}, fmt.Errorf("led: invalid color %q, want 6 hex digits", s)
	}
	return Color{R: b[0], G: b[1], B: b[2]}, nil
}
