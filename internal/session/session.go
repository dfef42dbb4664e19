// Package session implements the access-control state machine: the core
// that coordinates the card reader, the
// relay/interlock, the LED display, the button and the wall clock to
// grant, maintain, and revoke access to the equipment behind a portal
// box.
package session

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/thenewsboston-makerspace/portalboxd/internal/directory"
	"github.com/thenewsboston-makerspace/portalboxd/internal/led"
	"github.com/thenewsboston-makerspace/portalboxd/internal/watchdog"
)

// noProxy is the "no proxy card holding the session" sentinel, matching
// the −1 used throughout the directory schema for "no proxy".
const noProxy int64 = -1

// Timing constants governing the FSM's polling loops.
const (
	tick               = 100 * time.Millisecond
	graceRemovalPeriod = 10 * time.Second
	graceTimeoutPeriod = 10 * time.Second
	buttonMaxAge       = 9 * time.Second
	buzzerChirpPeriod  = 20 // ticks, during GraceRemoval and GraceTimeout
)

// buttons is the slice of *button.Queue this package drives.
type buttons interface {
	Poll() bool
}

// cardReader is the slice of *rfid.Reader this package drives.
type cardReader interface {
	Read() (uint32, error)
}

// power is the slice of *hal.Box this package drives.
type power interface {
	SetEquipmentPower(on bool) error
	SetBuzzer(on bool) error
	Powered() bool
}

// directoryClient is the slice of *directory.Client the FSM drives,
// broken out so tests can supply a fake directory instead of a MySQL
// connection.
type directoryClient interface {
	GetEquipmentProfile(mac string) (directory.Profile, bool)
	LogStarted(equipmentID int)
	LogShutdown(equipmentID int, cardID *uint32)
	LogAccessAttempt(card uint32, equipmentID int, success bool)
	LogAccessCompletion(card uint32, equipmentID int)
	GetCardType(uid uint32) directory.CardKind
	IsTrainingCardFor(uid uint32, equipmentTypeID int) bool
	IsUserAuthorized(cardUID uint32, equipmentTypeID int) bool
	IsUserTrainer(cardUID uint32) bool
	GetUser(cardUID uint32) (name, email string, ok bool)
}

// Machine is the session FSM. All fields are owned exclusively by the
// goroutine that calls Run — no locking, matching the single-owner
// resource model.
type Machine struct {
	box      power
	reader   cardReader
	buttons  buttons
	display  led.Display
	dir      directoryClient
	mailer   emailer
	wd       *watchdog.Watchdog
	logger   *slog.Logger

	mac        string
	sleepColor led.Color

	now   func() time.Time
	sleep func(time.Duration)
	stop  chan struct{}

	profile directory.Profile

	authorizedUID uint32
	proxyUID      int64
	trainingMode  bool
	userIsTrainer bool
	startTime     time.Time

	pendingUID         uint32
	pendingShutdownUID *uint32
}

// emailer is the slice of *notifier.Notifier this package drives.
type emailer interface {
	Send(to, subject, body string) error
}

// Config bundles the collaborators and small knobs Run needs.
type Config struct {
	Box        power
	Reader     cardReader
	Buttons    buttons
	Display    led.Display
	Directory  directoryClient
	Mailer     emailer
	Watchdog   *watchdog.Watchdog
	Logger     *slog.Logger
	SleepColor led.Color
}

// New constructs a Machine. The returned Machine has not yet resolved a
// MAC address or equipment profile — call Run to drive it through Boot.
func New(cfg Config) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleepColor := cfg.SleepColor
	if sleepColor == (led.Color{}) {
		sleepColor = led.Blue
	}
	return &Machine{
		box:        cfg.Box,
		reader:     cfg.Reader,
		buttons:    cfg.Buttons,
		display:    cfg.Display,
		dir:        cfg.Directory,
		mailer:     cfg.Mailer,
		wd:         cfg.Watchdog,
		logger:     logger,
		sleepColor: sleepColor,
		now:        time.Now,
		sleep:      time.Sleep,
		stop:       make(chan struct{}),
		proxyUID:   noProxy,
	}
}

// Stop requests a clean shutdown; it is safe to call from a signal
// handler goroutine. Run observes it at every wait-loop iteration, per
// the "shared running=false" model used to coordinate shutdown.
func (m *Machine) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
}

func (m *Machine) stopping() bool {
	select {
	case <-m.stop:
		return true
	default:
		return false
	}
}

// resolveMAC returns the hardware address of the first non-loopback
// interface with one, formatted lower-case colon-separated — the same
// identity the directory keys equipment rows by.
func resolveMAC() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("session: list network interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return strings.ToLower(iface.HardwareAddr.String()), nil
	}
	return "", fmt.Errorf("session: no network interface with a MAC address found")
}

// cardPresent makes a single Read and takes its "no card" result as
// final: the reader already retries the request internally.
// uid is non-zero only when a card answered.
func (m *Machine) cardPresent() (uid uint32, present bool) {
	uid, err := m.reader.Read()
	if err != nil {
		m.logger.Error("session: card read failed", "err", err)
		return 0, false
	}
	return uid, uid != 0
}

// setEquipmentPower drives the relay/interlock and keeps /tmp/running in
// sync with it ("/tmp/running contains literal True/False
// reflecting current equipment-power state") — every power transition in
// the FSM goes through here rather than calling box.SetEquipmentPower
// directly, so the two can never drift apart.
func (m *Machine) setEquipmentPower(on bool) {
	if err := m.box.SetEquipmentPower(on); err != nil {
		m.logger.Error("session: failed to set equipment power", "on", on, "err", err)
	}
	if m.wd != nil {
		m.wd.SetRunning(on)
	}
}

func (m *Machine) beat(token string) {
	if m.wd != nil {
		m.wd.Beat(token)
	}
}
