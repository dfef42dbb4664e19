package led

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// ackTimeout bounds how long the driver waits for the microcontroller's
// '0'/'1' reply before treating the link as dead.
const ackTimeout = 10 * time.Second

// serialPort is the slice of tarm/serial.Port the NeoPixel driver needs,
// broken out for testing with an in-memory pipe.
type serialPort interface {
	io.ReadWriter
	Close() error
}

// NeoPixelDisplay forwards the same high-level command vocabulary the
// session FSM uses straight across a UART link as ASCII text; the
// animation itself runs on the microcontroller at the other end, which
// replies with a single '0' (ok) or '1' (failure) byte per command, the
// same reply pattern the mjolnir firmware uses for its own
// line-oriented serial protocol.
type NeoPixelDisplay struct {
	port   serialPort
	reader *bufio.Reader
}

// OpenNeoPixelDisplay opens the serial device at path and returns a ready
// Display.
func OpenNeoPixelDisplay(path string, baud int) (*NeoPixelDisplay, error) {
	port, err := serial.OpenPort(&serial.Config{Name: path, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("led: open neopixel serial port %s: %w", path, err)
	}
	return newNeoPixelDisplay(port), nil
}

func newNeoPixelDisplay(port serialPort) *NeoPixelDisplay {
	return &NeoPixelDisplay{port: port, reader: bufio.NewReader(port)}
}

func (n *NeoPixelDisplay) SetColor(c Color) error {
	return n.send(fmt.Sprintf("color %d %d %d\n", c.R, c.G, c.B))
}

func (n *NeoPixelDisplay) Wipe(c Color, duration time.Duration) error {
	return n.send(fmt.Sprintf("wipe %d %d %d %d\n", c.R, c.G, c.B, duration.Milliseconds()))
}

func (n *NeoPixelDisplay) Blink(c Color, duration time.Duration, flashes int) error {
	return n.send(fmt.Sprintf("blink %d %d %d %d %d\n", c.R, c.G, c.B, duration.Milliseconds(), flashes))
}

func (n *NeoPixelDisplay) Pulse(c Color) error {
	return n.send(fmt.Sprintf("pulse %d %d %d\n", c.R, c.G, c.B))
}

func (n *NeoPixelDisplay) Sleep(sleepColor Color) error {
	return n.Pulse(sleepColor)
}

func (n *NeoPixelDisplay) Wake() error {
	return nil
}

func (n *NeoPixelDisplay) Close() error {
	return n.port.Close()
}

// send writes one command line and blocks for its ack, the same
// request/reply discipline that gives the Dotstar side's SetColor/Wipe/
// Blink their synchronous drain semantics — here it comes from the
// microcontroller's reply instead of a local tick loop.
func (n *NeoPixelDisplay) send(line string) error {
	if _, err := n.port.Write([]byte(line)); err != nil {
		return fmt.Errorf("led: neopixel write: %w", err)
	}

	type result struct {
		b   byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := n.reader.ReadByte()
		ch <- result{b, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return fmt.Errorf("led: neopixel ack: %w", res.err)
		}
		if res.b != '0' {
			return fmt.Errorf("led: neopixel reported failure for %q", line)
		}
		return nil
	case <-time.After(ackTimeout):
		return fmt.Errorf("led: neopixel ack timed out after %s", ackTimeout)
	}
}
