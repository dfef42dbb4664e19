package session

import (
	"time"

	"github.com/thenewsboston-makerspace/portalboxd/internal/led"
)

// Errors from the LED driver are logged with a distinct message per
// method and never abort the FSM.

func (m *Machine) setDisplayColor(c led.Color) {
	if err := m.display.SetColor(c); err != nil {
		m.logger.Warn("session: display set_color failed", "err", err)
	}
}

func (m *Machine) wipeDisplay(c led.Color, d time.Duration) {
	if err := m.display.Wipe(c, d); err != nil {
		m.logger.Warn("session: display wipe failed", "err", err)
	}
}

func (m *Machine) blinkDisplay(c led.Color, d time.Duration, flashes int) {
	if err := m.display.Blink(c, d, flashes); err != nil {
		m.logger.Warn("session: display blink failed", "err", err)
	}
}

func (m *Machine) pulseDisplay(c led.Color) {
	if err := m.display.Pulse(c); err != nil {
		m.logger.Warn("session: display pulse failed", "err", err)
	}
}
