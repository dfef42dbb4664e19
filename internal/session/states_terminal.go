package session

import (
	"fmt"
	"time"

	"github.com/thenewsboston-makerspace/portalboxd/internal/led"
)

const (
	forgottenCardWipeDuration    = 2 * time.Second
	unauthorizedBlinkDuration    = 1 * time.Second
	unauthorizedBlinkFlashes     = 2
)

// stateForgottenCard runs after GraceTimeout expires with the card still
// present: equipment is already off (GraceTimeout's job), so this state
// only animates the display, emails the user, and waits for the
// physical card to be removed.
func (m *Machine) stateForgottenCard() state {
	m.wipeDisplay(led.Blue, forgottenCardWipeDuration)
	m.notifyCardLeftBehind()
	m.setDisplayColor(led.Red)

	for {
		if m.stopping() {
			return stateShutdown
		}
		if _, present := m.cardPresent(); !present {
			m.dir.LogAccessCompletion(m.authorizedUID, m.profile.EquipmentID)
			m.resetSessionState()
			return stateIdle
		}
		m.beat("user_left_card")
		m.sleep(tick)
	}
}

func (m *Machine) notifyCardLeftBehind() {
	name, email, ok := m.dir.GetUser(m.authorizedUID)
	if !ok {
		m.logger.Warn("session: could not resolve user for forgotten-card email", "uid", m.authorizedUID)
		return
	}
	subject := "You left your access card behind"
	body := fmt.Sprintf(
		"Hi %s,\n\nYou left your access card in a portal box and it has been locked for your protection. Please go retrieve it.",
		name)
	if err := m.mailer.Send(email, subject, body); err != nil {
		m.logger.Warn("session: forgotten-card notification failed", "err", err)
	}
}

// stateUnauthorizedRemoval flashes red until the rejected card is taken
// away; no power transition occurs here (the equipment was never turned
// on) and no session state needs clearing since none was ever started.
func (m *Machine) stateUnauthorizedRemoval() state {
	for {
		if m.stopping() {
			return stateShutdown
		}
		m.blinkDisplay(led.Red, unauthorizedBlinkDuration, unauthorizedBlinkFlashes)
		if _, present := m.cardPresent(); !present {
			return stateIdle
		}
		m.beat("wait_unauth_remove")
	}
}

// stateShutdown is the terminal action: power off (idempotent if already
// off), log the shutdown row, and mark the watchdog's running flag
// false. halt tells the caller whether to request an OS shutdown
// (shutdown card) or just exit (SIGINT/SIGTERM).
func (m *Machine) stateShutdown(halt bool) {
	m.setEquipmentPower(false)
	m.dir.LogShutdown(m.profile.EquipmentID, m.pendingShutdownUID)

	token := "service_interrupt"
	if halt {
		token = "service_exit"
	}
	m.beat(token)
}
