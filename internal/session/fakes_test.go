package session

import (
	"io"
	"log/slog"
	"time"

	"github.com/thenewsboston-makerspace/portalboxd/internal/directory"
	"github.com/thenewsboston-makerspace/portalboxd/internal/led"
)

// fakeClock lets tests control "now" and collapse every sleep into an
// instant clock advance, so wall-clock deadlines (grace periods, the
// identify retry interval) resolve without the test actually waiting.
type fakeClock struct {
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.cur }

func (c *fakeClock) sleepFunc() func(time.Duration) {
	return func(step time.Duration) { c.cur = c.cur.Add(step) }
}

// fakeBox is a recording fake of the power interface.
type fakeBox struct {
	powered     bool
	buzzerOn    bool
	powerCalls  []bool
	buzzerCalls []bool
}

func (b *fakeBox) SetEquipmentPower(on bool) error {
	b.powered = on
	b.powerCalls = append(b.powerCalls, on)
	return nil
}

func (b *fakeBox) SetBuzzer(on bool) error {
	b.buzzerOn = on
	b.buzzerCalls = append(b.buzzerCalls, on)
	return nil
}

func (b *fakeBox) Powered() bool { return b.powered }

// fakeReader is a scripted cardReader: Read returns uid for the first n
// calls (n == -1 means "forever"), then 0 thereafter, modeling a card
// that is present for a while and then taken away.
type fakeReader struct {
	uid   uint32
	calls int
	limit int // -1 = always present, 0 = never present, N = present for N calls
}

func newFakeReader(uid uint32, limit int) *fakeReader {
	return &fakeReader{uid: uid, limit: limit}
}

func (r *fakeReader) Read() (uint32, error) {
	r.calls++
	if r.limit < 0 || r.calls <= r.limit {
		return r.uid, nil
	}
	return 0, nil
}

// fakeButtons is a manually-driven buttons fake. pressed makes the very
// next Poll() call report true and then reset to false, mimicking the
// real queue's drain-on-read behavior. pressOnCall, when nonzero, makes
// the pressOnCall'th call (1-indexed) report true instead — useful for
// arranging a press to land after a state's entry-clearing Poll() call
// rather than before it.
type fakeButtons struct {
	pressed    bool
	pressOnCall int
	pollLog    int
}

func (b *fakeButtons) Poll() bool {
	b.pollLog++
	if b.pressOnCall != 0 && b.pollLog == b.pressOnCall {
		return true
	}
	p := b.pressed
	b.pressed = false
	return p
}

// fakeDisplay records every call the FSM makes against led.Display.
type fakeDisplay struct {
	colors  []led.Color
	wipes   []led.Color
	blinks  []led.Color
	pulses  []led.Color
}

func (d *fakeDisplay) SetColor(c led.Color) error             { d.colors = append(d.colors, c); return nil }
func (d *fakeDisplay) Wipe(c led.Color, _ time.Duration) error { d.wipes = append(d.wipes, c); return nil }
func (d *fakeDisplay) Blink(c led.Color, _ time.Duration, _ int) error {
	d.blinks = append(d.blinks, c)
	return nil
}
func (d *fakeDisplay) Pulse(c led.Color) error       { d.pulses = append(d.pulses, c); return nil }
func (d *fakeDisplay) Sleep(c led.Color) error        { return d.Pulse(c) }
func (d *fakeDisplay) Wake() error                    { return nil }
func (d *fakeDisplay) Close() error                   { return nil }

func (d *fakeDisplay) lastColor() led.Color {
	if len(d.colors) == 0 {
		return led.Color{}
	}
	return d.colors[len(d.colors)-1]
}

// fakeDirectory implements directoryClient entirely in memory.
type fakeDirectory struct {
	kinds          map[uint32]directory.CardKind
	authorized     map[uint32]bool
	trainers       map[uint32]bool
	trainingValid  map[uint32]bool
	users          map[uint32][2]string // uid -> [name, email]

	attempts    []loggedAttempt
	completions []loggedCompletion
	shutdowns   []loggedShutdown
	started     []int
}

type loggedAttempt struct {
	card        uint32
	equipmentID int
	success     bool
}

type loggedCompletion struct {
	card        uint32
	equipmentID int
}

type loggedShutdown struct {
	equipmentID int
	cardID      *uint32
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		kinds:         map[uint32]directory.CardKind{},
		authorized:    map[uint32]bool{},
		trainers:      map[uint32]bool{},
		trainingValid: map[uint32]bool{},
		users:         map[uint32][2]string{},
	}
}

func (d *fakeDirectory) GetEquipmentProfile(mac string) (directory.Profile, bool) {
	return directory.Profile{}, false
}

func (d *fakeDirectory) LogStarted(equipmentID int) {
	d.started = append(d.started, equipmentID)
}

func (d *fakeDirectory) LogShutdown(equipmentID int, cardID *uint32) {
	d.shutdowns = append(d.shutdowns, loggedShutdown{equipmentID, cardID})
}

func (d *fakeDirectory) LogAccessAttempt(card uint32, equipmentID int, success bool) {
	d.attempts = append(d.attempts, loggedAttempt{card, equipmentID, success})
}

func (d *fakeDirectory) LogAccessCompletion(card uint32, equipmentID int) {
	d.completions = append(d.completions, loggedCompletion{card, equipmentID})
}

func (d *fakeDirectory) GetCardType(uid uint32) directory.CardKind {
	if k, ok := d.kinds[uid]; ok {
		return k
	}
	return directory.KindUnknown
}

func (d *fakeDirectory) IsTrainingCardFor(uid uint32, equipmentTypeID int) bool {
	return d.trainingValid[uid]
}

func (d *fakeDirectory) IsUserAuthorized(cardUID uint32, equipmentTypeID int) bool {
	return d.authorized[cardUID]
}

func (d *fakeDirectory) IsUserTrainer(cardUID uint32) bool {
	return d.trainers[cardUID]
}

func (d *fakeDirectory) GetUser(cardUID uint32) (name, email string, ok bool) {
	v, ok := d.users[cardUID]
	if !ok {
		return "", "", false
	}
	return v[0], v[1], true
}

// fakeMailer records every Send call.
type fakeMailer struct {
	sent []sentMail
}

type sentMail struct {
	to, subject, body string
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

// testFixture bundles a Machine with its fakes for assertions.
type testFixture struct {
	m       *Machine
	box     *fakeBox
	reader  *fakeReader
	buttons *fakeButtons
	display *fakeDisplay
	dir     *fakeDirectory
	mailer  *fakeMailer
	clock   *fakeClock
}

func newFixture(uid uint32, limit int) *testFixture {
	box := &fakeBox{}
	reader := newFakeReader(uid, limit)
	buttons := &fakeButtons{}
	display := &fakeDisplay{}
	dir := newFakeDirectory()
	mailer := &fakeMailer{}
	clock := newFakeClock()

	m := New(Config{
		Box:       box,
		Reader:    reader,
		Buttons:   buttons,
		Display:   display,
		Directory: dir,
		Mailer:    mailer,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	m.now = clock.now
	m.sleep = clock.sleepFunc()

	return &testFixture{m: m, box: box, reader: reader, buttons: buttons, display: display, dir: dir, mailer: mailer, clock: clock}
}
