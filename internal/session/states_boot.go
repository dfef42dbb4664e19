package session

import (
	"time"

	"github.com/thenewsboston-makerspace/portalboxd/internal/led"
)

const (
	bootWipeDuration = 1500 * time.Millisecond
	identifyInterval = 5 * time.Second
)

// stateBoot shows the two boot wipes and resolves this box's MAC address.
// Opening the directory connection and notifier is cmd/portalboxd's job;
// it tries the open once and does not retry it (a connect failure there
// is a startup error, exit code 1). The only retrying Boot leads into is
// stateIdentify's retry-until-profile loop below.
func (m *Machine) stateBoot() state {
	m.wipeDisplay(led.Red, bootWipeDuration)

	mac, err := resolveMAC()
	if err != nil {
		m.logger.Error("session: failed to resolve MAC address", "err", err)
	}
	m.mac = mac

	m.wipeDisplay(led.Orange, bootWipeDuration)
	return stateIdentify
}

// stateIdentify polls the directory for this box's equipment profile
// every 5s, feeding the watchdog each loop, until a profile is found or
// Stop is called. It reports false (and Run should exit identifying as
// not-found) only on the latter.
func (m *Machine) stateIdentify() bool {
	for {
		if m.stopping() {
			return false
		}
		m.beat("portalbox_init")
		profile, ok := m.dir.GetEquipmentProfile(m.mac)
		if ok {
			m.profile = profile
			m.dir.LogStarted(profile.EquipmentID)
			m.beat("equipment_profile")
			return true
		}
		m.sleep(identifyInterval)
	}
}
