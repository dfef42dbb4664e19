package button

import (
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// debounceTimeout is the same value the HAT's button worker uses to
// settle a mechanical switch before trusting its new state.
const debounceTimeout = 10 * time.Millisecond

// Listen configures pin as a pull-down input with detection on both edges
// and starts a background worker goroutine that pushes a timestamp onto q
// for every debounced rising edge (a low-to-high change that holds for
// debounceTimeout). It returns once the worker is started. The worker
// is the queue's only producer — the session FSM is purely a consumer via
// HasBeenPressed.
func Listen(pin gpio.PinIn, q *Queue) error {
	if err := pin.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return fmt.Errorf("button: configure %s: %w", pin, err)
	}
	go watch(pin, q)
	return nil
}

func watch(pin gpio.PinIn, q *Queue) {
	pressed := false
	newPressed := false
	for {
		timeout := debounceTimeout
		if newPressed == pressed {
			timeout = -1
		}
		if pin.WaitForEdge(timeout) {
			newPressed = pin.Read() == gpio.High
		} else {
			if newPressed != pressed {
				pressed = newPressed
				if pressed {
					q.Push()
					slog.Debug("button: rising edge observed")
				}
			}
		}
	}
}
