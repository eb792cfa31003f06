// Package bmp280 provides a driver for the Bosch BMP280 barometric pressure
// sensor. It exposes a two-phase measurement API:
//
//	d.Trigger()              // start a forced-mode conversion (fast)
//	err := d.Collect(&s)     // fetch when ready; returns ErrNotReady while busy
//
// For convenience, d.Read() performs trigger + bounded polling until ready.
//
// Compensation follows the integer arithmetic from the datasheet; outputs are
// fixed-point (millipascals and hundredths of °C). The pressure word is
// uncalibrated: factory trim is applied but no offset/altitude calibration.
package bmp280

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// I2C addresses (SDO low/high).
const (
	Address    = 0x76
	AddressAlt = 0x77
)

// Registers and control values (per datasheet).
const (
	regCalib     = 0x88
	regChipID    = 0xD0
	regSoftReset = 0xE0
	regStatus    = 0xF3
	regCtrlMeas  = 0xF4
	regConfig    = 0xF5
	regPressMSB  = 0xF7

	chipID1 = 0x56
	chipID2 = 0x57
	chipID3 = 0x58

	softResetCode = 0xB6

	statusMeasuring = 0x08

	modeSleep  = 0x00
	modeForced = 0x01

	// osrs_t x2, osrs_p x16, forced mode.
	ctrlForced = (0x02 << 5) | (0x05 << 2) | modeForced

	// standby irrelevant in forced mode; IIR filter off.
	configDefault = 0x00
)

// Errors returned by the driver.
var (
	ErrTimeout     = errors.New("bmp280: timeout")
	ErrNotReady    = errors.New("bmp280: not ready")
	ErrNotDetected = errors.New("bmp280: chip not detected")
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x76 if zero.
	Address uint16
	// PollInterval is used by Read() between Collect() attempts. Default 5 ms.
	PollInterval time.Duration
	// CollectTimeout bounds the total wait in Read(). Default 250 ms.
	CollectTimeout time.Duration
	// TriggerHint is the nominal conversion time for the configured
	// oversampling (no sleep is performed in Trigger). Default 45 ms.
	TriggerHint time.Duration
}

// calibration holds the factory trim words read once at Configure.
type calibration struct {
	t1         uint16
	t2, t3     int16
	p1         uint16
	p2, p3, p4 int16
	p5, p6, p7 int16
	p8, p9     int16
}

// Device wraps an I2C connection to a BMP280 device.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg   Config
	cal   calibration
	buf   [24]byte // reused for calibration and burst reads
	ready bool     // calibration loaded
}

// New creates a new BMP280 connection. The I2C bus must already be
// configured. This function only creates the Device object; it does not
// touch the device.
func New(bus drivers.I2C) Device {
	return Device{
		bus:     bus,
		Address: Address,
	}
}

// readReg selects a register and reads into buf in one transaction.
func (d *Device) readReg(reg uint8, buf []byte) error {
	return d.bus.Tx(d.Address, []byte{reg}, buf)
}

// writeReg writes a single control byte to a register.
func (d *Device) writeReg(reg uint8, val byte) error {
	return d.bus.Tx(d.Address, []byte{reg, val}, nil)
}

// Connected reads the chip ID register and checks it against the known
// BMP280 variants.
func (d *Device) Connected() bool {
	id := []byte{0}
	if err := d.readReg(regChipID, id); err != nil {
		return false
	}
	return id[0] == chipID1 || id[0] == chipID2 || id[0] == chipID3
}

// Configure applies optional config, loads the factory calibration, and
// leaves the device in sleep mode awaiting forced-mode triggers.
func (d *Device) Configure(cfgs ...Config) error {
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.Address != 0 {
			d.Address = c.Address
		}
		if c.PollInterval <= 0 {
			c.PollInterval = 5 * time.Millisecond
		}
		if c.CollectTimeout <= 0 {
			c.CollectTimeout = 250 * time.Millisecond
		}
		if c.TriggerHint <= 0 {
			c.TriggerHint = 45 * time.Millisecond
		}
		d.cfg = c
	} else {
		d.cfg = Config{
			Address:        d.Address,
			PollInterval:   5 * time.Millisecond,
			CollectTimeout: 250 * time.Millisecond,
			TriggerHint:    45 * time.Millisecond,
		}
	}

	if !d.Connected() {
		return ErrNotDetected
	}

	data := d.buf[:24]
	if err := d.readReg(regCalib, data); err != nil {
		return err
	}
	le := func(i int) uint16 { return uint16(data[i]) | uint16(data[i+1])<<8 }
	d.cal = calibration{
		t1: le(0), t2: int16(le(2)), t3: int16(le(4)),
		p1: le(6), p2: int16(le(8)), p3: int16(le(10)), p4: int16(le(12)),
		p5: int16(le(14)), p6: int16(le(16)), p7: int16(le(18)),
		p8: int16(le(20)), p9: int16(le(22)),
	}

	if err := d.writeReg(regConfig, configDefault); err != nil {
		return err
	}
	d.ready = true
	return nil
}

// Reset issues a soft reset. Give the device ~2ms afterwards before using.
func (d *Device) Reset() {
	_ = d.writeReg(regSoftReset, softResetCode)
}

// Status reads and returns the status byte.
func (d *Device) Status() (byte, error) {
	st := []byte{0}
	if err := d.readReg(regStatus, st); err != nil {
		return 0, err
	}
	return st[0], nil
}

// Trigger starts a forced-mode conversion. It is a quick register write with
// no blocking; the device returns to sleep once the conversion finishes.
func (d *Device) Trigger() error {
	if !d.ready {
		if err := d.Configure(); err != nil {
			return err
		}
	}
	return d.writeReg(regCtrlMeas, ctrlForced)
}

// TriggerHint returns the nominal conversion time to wait before attempting
// Collect.
func (d *Device) TriggerHint() time.Duration {
	if d.cfg.TriggerHint > 0 {
		return d.cfg.TriggerHint
	}
	return 45 * time.Millisecond
}

// Collect reads one measurement into the provided sample. While the
// conversion is still running, ErrNotReady is returned. Any bus error is
// returned as-is.
func (d *Device) Collect(out *Sample) error {
	st, err := d.Status()
	if err != nil {
		return err
	}
	if st&statusMeasuring != 0 {
		return ErrNotReady
	}

	data := d.buf[:6]
	if err := d.readReg(regPressMSB, data); err != nil {
		return err
	}
	rawP := int32(data[0])<<12 | int32(data[1])<<4 | int32(data[2])>>4
	rawT := int32(data[3])<<12 | int32(data[4])<<4 | int32(data[5])>>4

	tFine, centiC := d.compensateTemp(rawT)
	milliPa := d.compensatePress(rawP, tFine)

	if out != nil {
		out.RawPressure = rawP
		out.RawTemp = rawT
		out.MilliPa = milliPa
		out.CentiC = centiC
	}
	return nil
}

// Read performs a full measurement cycle: Trigger followed by bounded
// polling until Collect succeeds or the timeout elapses.
func (d *Device) Read(out *Sample) error {
	if err := d.Trigger(); err != nil {
		return err
	}
	time.Sleep(d.TriggerHint())
	deadline := time.Now().Add(d.cfg.CollectTimeout)
	for {
		err := d.Collect(out)
		switch err {
		case nil:
			return nil
		case ErrNotReady:
			if time.Now().After(deadline) {
				return ErrTimeout
			}
			time.Sleep(d.cfg.PollInterval)
			continue
		default:
			return err
		}
	}
}

// compensateTemp implements the datasheet integer compensation. It returns
// the t_fine carry used by the pressure path and the temperature in 0.01 °C.
func (d *Device) compensateTemp(raw int32) (int32, int32) {
	v1 := ((raw >> 3) - int32(d.cal.t1)<<1) * int32(d.cal.t2) >> 11
	v2 := (((raw >> 4) - int32(d.cal.t1)) * ((raw >> 4) - int32(d.cal.t1)) >> 12) * int32(d.cal.t3) >> 14
	tFine := v1 + v2
	return tFine, (tFine*5 + 128) >> 8
}

// compensatePress implements the 64-bit datasheet compensation and returns
// millipascals (device delivers Q24.8 Pa).
func (d *Device) compensatePress(raw, tFine int32) int64 {
	v1 := int64(tFine) - 128000
	v2 := v1 * v1 * int64(d.cal.p6)
	v2 += (v1 * int64(d.cal.p5)) << 17
	v2 += int64(d.cal.p4) << 35
	v1 = (v1*v1*int64(d.cal.p3))>>8 + (v1*int64(d.cal.p2))<<12
	v1 = ((int64(1)<<47 + v1) * int64(d.cal.p1)) >> 33
	if v1 == 0 {
		return 0 // avoid division by zero before trim is sane
	}
	p := int64(1048576 - raw)
	p = ((p<<31 - v2) * 3125) / v1
	v1 = (int64(d.cal.p9) * (p >> 13) * (p >> 13)) >> 25
	v2 = (int64(d.cal.p8) * p) >> 19
	p = ((p + v1 + v2) >> 8) + int64(d.cal.p7)<<4
	return p * 1000 / 256
}

// Sample holds one compensated measurement plus the raw words.
type Sample struct {
	RawPressure int32
	RawTemp     int32

	MilliPa int64 // compensated pressure, millipascals
	CentiC  int32 // die temperature, hundredths of °C
}
