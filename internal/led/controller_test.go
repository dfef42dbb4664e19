package led

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStrip struct {
	frames [][]pixel
	closed bool
}

func (f *fakeStrip) Write(pixels []pixel) error {
	cp := make([]pixel, len(pixels))
	copy(cp, pixels)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeStrip) Close() error {
	f.closed = true
	return nil
}

func newTestController(n int) (*controller, *fakeStrip) {
	strip := &fakeStrip{}
	c := &controller{
		strip:  strip,
		pixels: make([]pixel, n),
		cmds:   make(chan *command, 8),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	return c, strip
}

func TestColorCommandSetsAllPixelsAtDefaultBrightness(t *testing.T) {
	c, _ := newTestController(3)
	done := make(chan struct{})
	c.handleCommand(&command{kind: cmdColor, color: Red, done: done})

	select {
	case <-done:
	default:
		t.Fatal("color command should close done synchronously")
	}
	for _, p := range c.pixels {
		assert.Equal(t, Red, p.Color)
		assert.EqualValues(t, defaultBrightness, p.brightness)
	}
}

func TestWipeAnimatesOnePixelPerInterval(t *testing.T) {
	c, _ := newTestController(4)
	cmd := &command{kind: cmdWipe, color: Green, duration: 400 * time.Millisecond, done: make(chan struct{})}
	c.handleCommand(cmd)
	assert.Equal(t, effectWipe, c.effect)
	for _, p := range c.pixels {
		assert.Equal(t, Color{}, p.Color, "wipe starts from a blank strip")
	}
	require.Equal(t, 1, c.wipeTicksPerPixel, "400ms over 4 pixels at a 100ms tick is one tick per pixel")

	for i := 0; i < 4; i++ {
		c.advance()
	}

	select {
	case <-cmd.done:
	default:
		t.Fatal("wipe should have completed and closed done")
	}
	for _, p := range c.pixels {
		assert.Equal(t, Green, p.Color)
	}
	assert.Equal(t, effectIdle, c.effect)
}

func TestColorAbortsInProgressWipe(t *testing.T) {
	c, _ := newTestController(4)
	wipe := &command{kind: cmdWipe, color: Blue, duration: 10 * time.Second, done: make(chan struct{})}
	c.handleCommand(wipe)
	assert.Equal(t, effectWipe, c.effect)

	color := &command{kind: cmdColor, color: Yellow, done: make(chan struct{})}
	c.handleCommand(color)

	select {
	case <-wipe.done:
	default:
		t.Fatal("aborting a wipe must unblock its caller")
	}
	assert.Equal(t, effectIdle, c.effect)
	for _, p := range c.pixels {
		assert.Equal(t, Yellow, p.Color)
	}
}

func TestColorWithNonBlackDoesNotAbortBlinkOrPulse(t *testing.T) {
	c, _ := newTestController(2)
	blink := &command{kind: cmdBlink, color: Red, duration: time.Second, flashes: 2, done: make(chan struct{})}
	c.handleCommand(blink)
	assert.Equal(t, effectBlink, c.effect)

	c.handleCommand(&command{kind: cmdColor, color: Green, done: make(chan struct{})})

	select {
	case <-blink.done:
		t.Fatal("a non-black color command must not abort an in-progress blink")
	default:
	}
	assert.Equal(t, effectBlink, c.effect)
}

func TestColorWithBlackAbortsBlink(t *testing.T) {
	c, _ := newTestController(2)
	blink := &command{kind: cmdBlink, color: Red, duration: time.Second, flashes: 2, done: make(chan struct{})}
	c.handleCommand(blink)

	c.handleCommand(&command{kind: cmdColor, color: Black, done: make(chan struct{})})

	select {
	case <-blink.done:
	default:
		t.Fatal("a black color command must abort an in-progress blink")
	}
	assert.Equal(t, effectIdle, c.effect)
}

func TestBlinkAlternatesBrightnessAndCompletesAfterAllHalfCycles(t *testing.T) {
	c, _ := newTestController(1)
	cmd := &command{kind: cmdBlink, color: Red, duration: 400 * time.Millisecond, flashes: 2, done: make(chan struct{})}
	c.handleCommand(cmd)
	assert.EqualValues(t, maxBrightness, c.pixels[0].brightness, "blink starts bright")
	require.Equal(t, 1, c.blinkTicksPerHalf)

	want := []byte{minBrightness, maxBrightness, minBrightness, maxBrightness}
	for _, w := range want {
		c.advance()
		assert.EqualValues(t, w, c.pixels[0].brightness)
	}

	select {
	case <-cmd.done:
	default:
		t.Fatal("blink should complete after 2*flashes half-cycles")
	}
	assert.Equal(t, effectIdle, c.effect)
}

func TestPulseNeverCompletesAndDoesNotBlockItsCaller(t *testing.T) {
	c, _ := newTestController(1)
	cmd := &command{kind: cmdPulse, color: Blue}
	c.handleCommand(cmd)
	assert.Nil(t, c.pending, "pulse never registers a blocking waiter")
	assert.EqualValues(t, minBrightness, c.pixels[0].brightness)

	for i := 0; i < 20; i++ {
		c.advance()
		assert.GreaterOrEqual(t, c.pulseBrightness, minBrightness)
		assert.LessOrEqual(t, c.pulseBrightness, maxBrightness)
	}
	assert.Equal(t, effectPulse, c.effect)
}

func TestTicksForRoundsAndFloorsAtOneTick(t *testing.T) {
	assert.Equal(t, 1, ticksFor(10*time.Millisecond, 4))
	assert.Equal(t, 1, ticksFor(400*time.Millisecond, 4))
	assert.Equal(t, 2, ticksFor(800*time.Millisecond, 4))
}

func TestSubmitBlocksUntilEffectCompletes(t *testing.T) {
	c, strip := newTestController(2)
	go c.run()
	defer c.close()

	c.submit(&command{kind: cmdColor, color: Red, done: make(chan struct{})})
	require.NotEmpty(t, strip.frames)
	assert.Equal(t, Red, strip.frames[len(strip.frames)-1][0].Color)
}
