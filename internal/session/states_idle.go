package session

import (
	"github.com/thenewsboston-makerspace/portalboxd/internal/directory"
	"github.com/thenewsboston-makerspace/portalboxd/internal/led"
)

// pendingUID is carried from Idle to Classify; it isn't part of the
// long-lived session state so it lives as a plain field rather than a
// transition argument (fsm.go's dispatch loop has no payload channel).
func (m *Machine) stateIdle() state {
	m.pulseDisplay(m.sleepColor)

	for {
		if m.stopping() {
			return stateShutdown
		}
		m.beat("wait_for_a_card")
		uid, present := m.cardPresent()
		if present {
			m.pendingUID = uid
			return stateClassify
		}
		m.sleep(tick)
	}
}

// stateClassify asks the directory what kind of card was just read and
// dispatches per the Idle transition table. The returned bool is
// true only when a shutdown card ended the session (cmd/portalboxd
// halts the OS in that case, not on a plain SIGTERM/SIGINT exit).
func (m *Machine) stateClassify() (next state, halt bool) {
	uid := m.pendingUID
	kind := m.dir.GetCardType(uid)

	switch kind {
	case directory.KindShutdown:
		id := uid
		m.pendingShutdownUID = &id
		m.setDisplayColor(led.Black)
		return stateShutdown, true

	case directory.KindUser:
		if m.dir.IsUserAuthorized(uid, m.profile.EquipmentTypeID) {
			m.dir.LogAccessAttempt(uid, m.profile.EquipmentID, true)
			m.authorizedUID = uid
			m.proxyUID = noProxy
			m.trainingMode = false
			m.userIsTrainer = m.dir.IsUserTrainer(uid)
			m.startTime = m.now()
			return stateRunSession, false
		}
		m.dir.LogAccessAttempt(uid, m.profile.EquipmentID, false)
		return stateUnauthorizedRemoval, false

	default:
		// Proxy, Training and Unknown cards presented directly in Idle
		// are unauthorized. A directory error classifies as
		// KindUnknown too, which lands here and fails closed the same
		// way, matching the "treat as unauthorized" fail-closed rule.
		m.dir.LogAccessAttempt(uid, m.profile.EquipmentID, false)
		return stateUnauthorizedRemoval, false
	}
}
