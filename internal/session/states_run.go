package session

import (
	"time"

	"github.com/thenewsboston-makerspace/portalboxd/internal/led"
)

const sessionStartChirp = 50 * time.Millisecond

// currentColor reflects the active role: trainer purple beats proxy
// orange beats plain user green, matching the end-to-end scenarios in
// the training/proxy/plain-access scenarios.
func (m *Machine) currentColor() led.Color {
	switch {
	case m.trainingMode:
		return led.Purple
	case m.proxyUID != noProxy:
		return led.Orange
	default:
		return led.Green
	}
}

// resetSessionState clears per-session fields once a session has fully
// ended (equipment already powered off), so a later Idle->Classify cycle
// starts clean.
func (m *Machine) resetSessionState() {
	m.authorizedUID = 0
	m.proxyUID = noProxy
	m.trainingMode = false
	m.userIsTrainer = false
	m.pendingShutdownUID = nil
}

// stateRunSession owns the full RunSession polling loop: it
// only returns once the session needs to leave RunSession, either for
// GraceRemoval (card missing/changed), GraceTimeout (time limit hit), or
// Shutdown (signal). It is reentered after GraceRemoval/GraceTimeout
// resume the same way it was entered the first time, but the
// power-on+chirp entry action only fires when the equipment isn't
// already powered — a grace resume keeps the relay closed the whole
// time.
func (m *Machine) stateRunSession() state {
	if !m.box.Powered() {
		m.box.SetBuzzer(true)
		m.sleep(sessionStartChirp)
		m.box.SetBuzzer(false)
		m.setEquipmentPower(true)
	}
	m.setDisplayColor(m.currentColor())

	for {
		if m.stopping() {
			return stateShutdown
		}

		uid, present := m.cardPresent()
		if present && (uid == m.authorizedUID || int64(uid) == m.proxyUID) {
			if m.profile.TimeoutMinutes > 0 {
				limit := time.Duration(m.profile.TimeoutMinutes) * time.Minute
				if m.now().Sub(m.startTime) >= limit {
					return stateGraceTimeout
				}
			}
			m.beat("wait_auth_remove_timeout")
			m.sleep(tick)
			continue
		}

		return stateGraceRemoval
	}
}
