//go:build !linux

// services/sensors/platform/i2c_other.go
package platform

import (
	"errors"

	"tinygo.org/x/drivers"
)

// ErrUnsupportedPlatform is returned where no native I²C adapter access
// exists; only the simulated bus is available.
var ErrUnsupportedPlatform = errors.New("platform: native i2c requires linux")

// LinuxI2C is unavailable on this platform.
type LinuxI2C struct{}

func OpenLinuxI2C(path string) (*LinuxI2C, error) {
	return nil, ErrUnsupportedPlatform
}

func (b *LinuxI2C) Close() error { return ErrUnsupportedPlatform }

func (b *LinuxI2C) Tx(addr uint16, w, r []byte) error { return ErrUnsupportedPlatform }

var _ drivers.I2C = (*LinuxI2C)(nil)
