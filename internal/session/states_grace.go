package session

import (
	"time"

	"github.com/thenewsboston-makerspace/portalboxd/internal/directory"
	"github.com/thenewsboston-makerspace/portalboxd/internal/led"
)

const (
	chirpDuration             = 30 * time.Millisecond
	graceRemovalFlashDuration = 400 * time.Millisecond
	graceRemovalFlashes       = 2
)

// stateGraceRemoval covers the 10s window after the authorized card goes
// missing or is swapped: the original card returning, a proxy card, or a
// valid training card all resume RunSession; a button press or the timer
// running out end the session.
func (m *Machine) stateGraceRemoval() state {
	m.buttons.Poll() // clear pending events at entry
	m.setDisplayColor(led.Yellow)

	deadline := m.now().Add(graceRemovalPeriod)
	ticks := 0

	for {
		if m.stopping() {
			m.endSession()
			return stateShutdown
		}

		uid, present := m.cardPresent()
		if present {
			switch {
			case uid == m.authorizedUID:
				return stateRunSession

			case !m.trainingMode && m.dir.GetCardType(uid) == directory.KindProxy:
				m.proxyUID = int64(uid)
				return stateRunSession

			case m.proxyUID == noProxy && m.userIsTrainer && m.dir.GetCardType(uid) == directory.KindTraining &&
				m.dir.IsTrainingCardFor(uid, m.profile.EquipmentTypeID):
				m.dir.LogAccessAttempt(uid, m.profile.EquipmentID, true)
				m.trainingMode = true
				m.authorizedUID = uid
				m.userIsTrainer = false
				return stateRunSession
			}
			// any other card present: ignored, keep waiting.
		}

		if m.buttons.Poll() {
			m.beat("wait_auth_card_return")
			m.endSession()
			return stateIdle
		}

		ticks++
		if ticks%buzzerChirpPeriod == 0 {
			m.chirpBuzzer()
			m.blinkDisplay(led.Yellow, graceRemovalFlashDuration, graceRemovalFlashes)
		}

		if m.now().After(deadline) {
			m.endSession()
			return stateIdle
		}

		m.beat("wait_auth_card_return")
		m.sleep(tick)
	}
}

// stateGraceTimeout covers the 10s window after the session's time limit
// is hit: a button press with the card still present renews the
// timeout; a button press with no card, or the timer expiring, end the
// session (into ForgottenCard if the card is still sitting there).
func (m *Machine) stateGraceTimeout() state {
	m.buttons.Poll()
	m.setDisplayColor(led.Orange)

	deadline := m.now().Add(graceTimeoutPeriod)
	ticks := 0

	for {
		if m.stopping() {
			m.endSession()
			return stateShutdown
		}

		if m.buttons.Poll() {
			_, present := m.cardPresent()
			if present {
				m.startTime = m.now()
				return stateRunSession
			}
			m.endSession()
			return stateIdle
		}

		ticks++
		if ticks%buzzerChirpPeriod == 0 {
			m.chirpBuzzer()
		}

		if m.now().After(deadline) {
			m.setEquipmentPower(false)
			if _, present := m.cardPresent(); present {
				return stateForgottenCard
			}
			m.dir.LogAccessCompletion(m.authorizedUID, m.profile.EquipmentID)
			m.resetSessionState()
			return stateIdle
		}

		m.beat("grace_timeout")
		m.sleep(tick)
	}
}

// endSession powers off, logs completion, and clears session state — the
// shared tail of the GraceRemoval exits and of GraceTimeout's button and
// stop exits. GraceTimeout's timer-expiry exit powers off itself before
// checking for a card, and either hands off to ForgottenCard with power
// already off or logs completion and clears state inline.
func (m *Machine) endSession() {
	m.setEquipmentPower(false)
	m.dir.LogAccessCompletion(m.authorizedUID, m.profile.EquipmentID)
	m.resetSessionState()
}

func (m *Machine) chirpBuzzer() {
	m.box.SetBuzzer(true)
	m.sleep(chirpDuration)
	m.box.SetBuzzer(false)
}
