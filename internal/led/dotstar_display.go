package led

import "time"

// DotstarDisplay drives an SPI Dotstar/APA102 strip through the tick-based
// animation engine in controller.go.
type DotstarDisplay struct {
	ctrl *controller
}

// NewDotstarDisplay opens a Dotstar strip of count pixels over conn and
// starts its animation goroutine.
func NewDotstarDisplay(conn spiConn, count int) *DotstarDisplay {
	return &DotstarDisplay{ctrl: newController(newDotstarStrip(conn, count), count)}
}

func (d *DotstarDisplay) SetColor(c Color) error {
	d.ctrl.submit(&command{kind: cmdColor, color: c, done: make(chan struct{})})
	return nil
}

func (d *DotstarDisplay) Wipe(c Color, duration time.Duration) error {
	d.ctrl.submit(&command{kind: cmdWipe, color: c, duration: duration, done: make(chan struct{})})
	return nil
}

func (d *DotstarDisplay) Blink(c Color, duration time.Duration, flashes int) error {
	d.ctrl.submit(&command{kind: cmdBlink, color: c, duration: duration, flashes: flashes, done: make(chan struct{})})
	return nil
}

func (d *DotstarDisplay) Pulse(c Color) error {
	d.ctrl.submit(&command{kind: cmdPulse, color: c})
	return nil
}

func (d *DotstarDisplay) Sleep(sleepColor Color) error {
	return d.Pulse(sleepColor)
}

func (d *DotstarDisplay) Wake() error {
	return nil
}

func (d *DotstarDisplay) Close() error {
	d.ctrl.close()
	return nil
}
