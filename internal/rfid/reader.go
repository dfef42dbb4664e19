package rfid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// errTransceive marks a protocol-level failure (no tag in field, garbled
// response) that the reader treats as "no card" rather than propagating —
// hang detection only escalates to the caller on a confirmed reader hang.
var errTransceive = errors.New("rfid: transceive error")

// HangFunc is invoked once per sleep cycle while the reader is in its
// unrecoverable hang loop — normally beeping the buzzer and alternating the
// display red/yellow. It must not block for long; Reader sleeps between
// calls itself.
type HangFunc func()

// Reader wraps an MFRC522 module reachable over conn, providing the
// UID-acquisition and hang-detection behavior of the MFRC522. A Reader is
// owned by a single goroutine (the session FSM's main loop); it polls, it
// is never driven by interrupts.
type Reader struct {
	conn   spiConn
	onHang HangFunc
	sleep  func(time.Duration)

	prevTxControl byte
	sawFirstRead  bool
}

// New constructs a Reader. onHang is called repeatedly, once per ~10s
// sleep, once a hang is detected; it never returns control to the caller,
// matching the "no self-recovery, watchdog restarts the process" policy.
func New(conn spiConn, onHang HangFunc) *Reader {
	return &Reader{
		conn:   conn,
		onHang: onHang,
		sleep:  time.Sleep,
	}
}

// Read acquires a single 4-byte UID, MSB-first, packed into a uint32. A
// return of (0, nil) means no card is present — callers require
// that a present card never yields 0. Read retries the request exactly
// once internally, so a single call's "no card" result already covers two
// attempts; the session FSM takes it as final and does not read again.
func (r *Reader) Read() (uint32, error) {
	hung, err := r.checkHang()
	if err != nil {
		return 0, fmt.Errorf("rfid: hang check: %w", err)
	}
	if hung {
		r.hangLoop()
		// unreachable: hangLoop never returns
	}

	uid, err := r.readOnce()
	if err != nil {
		return 0, err
	}
	if uid == 0 {
		uid, err = r.readOnce()
		if err != nil {
			return 0, err
		}
	}
	return uid, nil
}

// checkHang reads status registers 17, 20 and 21 and reports whether
// register 20 (TxControlReg) has just transitioned from 0x83 (antenna
// driven) to 0x80 (antenna switched itself off) — the documented MFRC522
// hang signature.
func (r *Reader) checkHang() (bool, error) {
	if _, err := readRegister(r.conn, regTxModeReg); err != nil {
		return false, err
	}
	tx20, err := readRegister(r.conn, regTxControlReg)
	if err != nil {
		return false, err
	}
	if _, err := readRegister(r.conn, regTxASKReg); err != nil {
		return false, err
	}

	hung := r.sawFirstRead && r.prevTxControl == antennaOnValue && tx20 == antennaOffValue
	r.prevTxControl = tx20
	r.sawFirstRead = true
	return hung, nil
}

// hangLoop beeps and flashes forever. It deliberately never returns: the
// reader is unrecoverable in-band, and only the external watchdog killing
// and restarting the process can clear it.
func (r *Reader) hangLoop() {
	for {
		if r.onHang != nil {
			r.onHang()
		}
		r.sleep(10 * time.Second)
	}
}

func (r *Reader) readOnce() (uint32, error) {
	present, err := requestA(r.conn)
	if err != nil {
		if errors.Is(err, errTransceive) {
			return 0, nil
		}
		return 0, err
	}
	if !present {
		return 0, nil
	}
	uidBytes, err := anticollision(r.conn)
	if err != nil {
		if errors.Is(err, errTransceive) {
			return 0, nil
		}
		return 0, err
	}
	uid := binary.BigEndian.Uint32(uidBytes[:])
	if uid == 0 {
		return 0, nil
	}
	return uid, nil
}

func requestA(conn spiConn) (bool, error) {
	// Short frame: 7 data bits for the REQA command.
	if err := writeRegister(conn, regBitFramingReg, 0x07); err != nil {
		return false, err
	}
	resp, err := transceive(conn, []byte{0x26})
	if err != nil {
		return false, err
	}
	return len(resp) == 2, nil
}

func anticollision(conn spiConn) ([4]byte, error) {
	if err := writeRegister(conn, regBitFramingReg, 0x00); err != nil {
		return [4]byte{}, err
	}
	resp, err := transceive(conn, []byte{0x93, 0x20})
	if err != nil {
		return [4]byte{}, err
	}
	if len(resp) != 5 {
		return [4]byte{}, fmt.Errorf("%w: short anticollision reply", errTransceive)
	}
	var uid [4]byte
	copy(uid[:], resp[:4])
	bcc := resp[0] ^ resp[1] ^ resp[2] ^ resp[3]
	if bcc != resp[4] {
		return [4]byte{}, fmt.Errorf("%w: checksum mismatch", errTransceive)
	}
	return uid, nil
}

func transceive(conn spiConn, data []byte) ([]byte, error) {
	if err := writeRegister(conn, regCommandReg, cmdIdle); err != nil {
		return nil, err
	}
	if err := writeRegister(conn, regComIrqReg, 0x7F); err != nil {
		return nil, err
	}
	if err := setBitMask(conn, regFIFOLevelReg, 0x80); err != nil {
		return nil, err
	}
	for _, b := range data {
		if err := writeRegister(conn, regFIFODataReg, b); err != nil {
			return nil, err
		}
	}
	if err := writeRegister(conn, regCommandReg, cmdTransceive); err != nil {
		return nil, err
	}
	if err := setBitMask(conn, regBitFramingReg, 0x80); err != nil {
		return nil, err
	}

	const maxPolls = 2000
	done := false
	for i := 0; i < maxPolls; i++ {
		irq, err := readRegister(conn, regComIrqReg)
		if err != nil {
			return nil, err
		}
		if irq&0x30 != 0 { // RxIRq or IdleIRq
			done = true
			break
		}
	}
	if err := clearBitMask(conn, regBitFramingReg, 0x80); err != nil {
		return nil, err
	}
	if !done {
		return nil, fmt.Errorf("%w: timeout", errTransceive)
	}

	errReg, err := readRegister(conn, regErrorReg)
	if err != nil {
		return nil, err
	}
	if errReg&0x1B != 0 {
		return nil, fmt.Errorf("%w: error register %#x", errTransceive, errReg)
	}

	n, err := readRegister(conn, regFIFOLevelReg)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		b, err := readRegister(conn, regFIFODataReg)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
