// Package hal is the thin hardware abstraction layer between the session
// state machine and the box's relay, interlock, buzzer and RFID reset line.
// It owns no animation or protocol logic — that belongs to internal/led and
// internal/rfid — only raw GPIO output state, following the same
// single-owner-per-resource rule as the rest of the periph.io wiring in
// driver/wshat.
package hal

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/bcm283x"
)

// BOARD-numbered pin assignments.
const (
	PinInterlock = 11
	PinBuzzer    = 33
	PinButton    = 35
	PinRelay     = 37
	PinRFIDReset = 13
)

// boardToBCM maps the BOARD-numbered header pins this box uses to their BCM
// GPIO line on the Raspberry Pi 40-pin header, the same direct bcm283x
// constants the WSHAT addresses its buttons by.
var boardToBCM = map[int]gpio.PinIO{
	PinInterlock: bcm283x.GPIO17,
	PinRFIDReset: bcm283x.GPIO27,
	PinBuzzer:    bcm283x.GPIO13,
	PinButton:    bcm283x.GPIO19,
	PinRelay:     bcm283x.GPIO26,
}

// Pin resolves a BOARD pin number to its periph.io GPIO handle.
func Pin(board int) (gpio.PinIO, error) {
	p, ok := boardToBCM[board]
	if !ok {
		return nil, fmt.Errorf("hal: no BCM mapping for BOARD pin %d", board)
	}
	return p, nil
}

// outPin is the narrow slice of gpio.PinOut that Box actually drives,
// broken out so tests can supply a fake without satisfying periph's full
// pin interface.
type outPin interface {
	Out(l gpio.Level) error
}

// Box is the set of GPIO outputs the session FSM drives directly.
// The LED strip and the RFID data path are NOT part of Box; they are owned
// by internal/led and internal/rfid respectively.
type Box struct {
	relay     outPin
	interlock outPin
	buzzer    outPin
	rfidReset outPin

	// interlockPoweredLevel is the logic level that means "equipment
	// powered" on the interlock line; it flips on the Pi Zero W.
	interlockPoweredLevel gpio.Level

	powered bool
}

// Open initializes periph's host drivers and wires up the box's outputs
// using the standard BOARD pin assignments. invertInterlock should be the
// result of hal.IsPiZeroW on the detected revision.
func Open(invertInterlock bool) (*Box, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hal: host init: %w", err)
	}
	relay, err := Pin(PinRelay)
	if err != nil {
		return nil, err
	}
	interlock, err := Pin(PinInterlock)
	if err != nil {
		return nil, err
	}
	buzzer, err := Pin(PinBuzzer)
	if err != nil {
		return nil, err
	}
	rfidReset, err := Pin(PinRFIDReset)
	if err != nil {
		return nil, err
	}
	return newBox(relay, interlock, buzzer, rfidReset, invertInterlock)
}

func newBox(relay, interlock, buzzer, rfidReset outPin, invertInterlock bool) (*Box, error) {
	b := &Box{
		relay:     relay,
		interlock: interlock,
		buzzer:    buzzer,
		rfidReset: rfidReset,
	}
	if invertInterlock {
		// Revision 9000c1 (Pi Zero W): HIGH = powered.
		b.interlockPoweredLevel = gpio.High
	} else {
		// Every other revision: HIGH = open (not powered).
		b.interlockPoweredLevel = gpio.Low
	}
	if err := b.resetRFID(); err != nil {
		return nil, err
	}
	if err := b.SetEquipmentPower(false); err != nil {
		return nil, err
	}
	if err := b.SetBuzzer(false); err != nil {
		return nil, err
	}
	return b, nil
}

// resetRFID pulses NRST low, then releases it, matching the original
// driver's guaranteed-clean-start sequence at construction.
func (b *Box) resetRFID() error {
	if err := b.rfidReset.Out(gpio.Low); err != nil {
		return fmt.Errorf("hal: rfid reset assert: %w", err)
	}
	if err := b.rfidReset.Out(gpio.High); err != nil {
		return fmt.Errorf("hal: rfid reset release: %w", err)
	}
	return nil
}

// SetEquipmentPower closes (true) or opens (false) both the relay and the
// interlock. Equipment power is ON iff both agree; we always drive them
// together so "power on ⟺ session live" holds by
// construction.
func (b *Box) SetEquipmentPower(on bool) error {
	relayLevel := gpio.Low
	interlockLevel := !b.interlockPoweredLevel
	if on {
		relayLevel = gpio.High
		interlockLevel = b.interlockPoweredLevel
	}
	if err := b.relay.Out(relayLevel); err != nil {
		return fmt.Errorf("hal: relay: %w", err)
	}
	if err := b.interlock.Out(interlockLevel); err != nil {
		return fmt.Errorf("hal: interlock: %w", err)
	}
	b.powered = on
	slog.Debug("hal: equipment power", slog.Bool("on", on))
	return nil
}

// Powered reports the last commanded power state.
func (b *Box) Powered() bool {
	return b.powered
}

// SetBuzzer drives the buzzer output.
func (b *Box) SetBuzzer(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := b.buzzer.Out(level); err != nil {
		return fmt.Errorf("hal: buzzer: %w", err)
	}
	return nil
}

// Shutdown is the panic-safe cleanup path: it forces the relay and
// interlock open regardless of current state, and is safe to call multiple
// times or from a deferred recover(). It must never itself panic.
func (b *Box) Shutdown() {
	if b == nil {
		return
	}
	if err := b.relay.Out(gpio.Low); err != nil {
		slog.Error("hal: shutdown: relay", slog.Any("err", err))
	}
	openLevel := !b.interlockPoweredLevel
	if err := b.interlock.Out(openLevel); err != nil {
		slog.Error("hal: shutdown: interlock", slog.Any("err", err))
	}
	if err := b.buzzer.Out(gpio.Low); err != nil {
		slog.Error("hal: shutdown: buzzer", slog.Any("err", err))
	}
	b.powered = false
}
