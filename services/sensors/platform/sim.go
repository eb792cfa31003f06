// services/sensors/platform/sim.go
package platform

import (
	"errors"
	"sync"
)

// SimBMP280 is an in-memory I²C bus with a single BMP280 behind it. It
// answers the register protocol the driver speaks: chip id, calibration
// block, forced-mode trigger, status polling, and the 6-byte burst read.
//
// The factory trim words and the raw conversion results default to the
// worked example from the datasheet (25.08 °C, ~100653 Pa), so compensation
// output is verifiable.
type SimBMP280 struct {
	mu sync.Mutex

	Addr uint16

	// Raw conversion words served on the next burst read.
	RawTemp  int32
	RawPress int32

	// BusyReads is how many status polls report "measuring" after each
	// trigger, to exercise the not-ready path. 0 means always ready.
	BusyReads int

	busyLeft  int
	triggered int
}

var errSimNoDevice = errors.New("platform: no device at address")

const (
	simRegCalib    = 0x88
	simRegChipID   = 0xD0
	simRegStatus   = 0xF3
	simRegCtrl     = 0xF4
	simRegConfig   = 0xF5
	simRegPressMSB = 0xF7
)

// NewSimBMP280 returns a simulated sensor at the default address serving the
// datasheet example conversion.
func NewSimBMP280() *SimBMP280 {
	return &SimBMP280{
		Addr:     0x76,
		RawTemp:  519888,
		RawPress: 415148,
	}
}

// Triggered returns how many forced conversions were requested.
func (s *SimBMP280) Triggered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggered
}

// datasheet trim values (dig_T1..dig_P9), little endian at 0x88.
var simCalib = []uint16{
	27504, 26435, 64536, // T1..T3 (T3 = -1000)
	36477, 54851, 3024, // P1..P3 (P2 = -10685)
	2855, 140, 65529, // P4..P6 (P6 = -7)
	15500, 50936, 6000, // P7..P9 (P8 = -14600)
}

// readRegister serves a register read. Callers hold the lock.
func (s *SimBMP280) readRegister(addr uint16, reg uint8, buf []byte) error {
	if addr != s.Addr {
		return errSimNoDevice
	}
	switch {
	case reg == simRegChipID:
		if len(buf) > 0 {
			buf[0] = 0x58
		}
	case reg == simRegStatus:
		st := byte(0)
		if s.busyLeft > 0 {
			s.busyLeft--
			st = 0x08
		}
		if len(buf) > 0 {
			buf[0] = st
		}
	case reg >= simRegCalib && reg < simRegCalib+24:
		for i := range buf {
			idx := int(reg) - simRegCalib + i
			if idx >= 24 {
				break
			}
			w := simCalib[idx/2]
			if idx%2 == 0 {
				buf[i] = byte(w)
			} else {
				buf[i] = byte(w >> 8)
			}
		}
	case reg == simRegPressMSB:
		s.burst(buf)
	default:
		for i := range buf {
			buf[i] = 0
		}
	}
	return nil
}

// writeRegister serves a register write. Callers hold the lock.
func (s *SimBMP280) writeRegister(addr uint16, reg uint8, buf []byte) error {
	if addr != s.Addr {
		return errSimNoDevice
	}
	switch reg {
	case simRegCtrl:
		if len(buf) > 0 && buf[0]&0x03 != 0 {
			s.triggered++
			s.busyLeft = s.BusyReads
		}
	case simRegConfig, simRegCalib:
		// accepted, no effect on the model
	}
	return nil
}

// Tx implements the combined write-then-read transaction in terms of the
// register model.
func (s *SimBMP280) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(w) == 1 && len(r) > 0 {
		return s.readRegister(addr, w[0], r)
	}
	if len(w) >= 2 {
		return s.writeRegister(addr, w[0], w[1:])
	}
	return nil
}

// burst serves press_msb..temp_xlsb. Callers hold the lock.
func (s *SimBMP280) burst(buf []byte) {
	p, t := s.RawPress, s.RawTemp
	raw := [6]byte{
		byte(p >> 12), byte(p >> 4), byte(p << 4),
		byte(t >> 12), byte(t >> 4), byte(t << 4),
	}
	copy(buf, raw[:])
}
