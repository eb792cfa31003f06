//go:build linux

// services/sensors/platform/i2c_linux.go
package platform

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// I2C_SLAVE from linux/i2c-dev.h.
const i2cSlave = 0x0703

// LinuxI2C drives a /dev/i2c-N character device through plain read/write
// after selecting the 7-bit slave address with ioctl.
type LinuxI2C struct {
	mu   sync.Mutex
	fd   int
	path string
}

// OpenLinuxI2C opens an I²C adapter, e.g. "/dev/i2c-1".
func OpenLinuxI2C(path string) (*LinuxI2C, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("platform: open %s: %w", path, err)
	}
	return &LinuxI2C{fd: fd, path: path}, nil
}

func (b *LinuxI2C) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return unix.Close(b.fd)
}

func (b *LinuxI2C) setAddr(addr uint16) error {
	return unix.IoctlSetInt(b.fd, i2cSlave, int(addr))
}

// Tx performs a write followed by a read without releasing the device.
func (b *LinuxI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.setAddr(addr); err != nil {
		return fmt.Errorf("platform: %s addr %#x: %w", b.path, addr, err)
	}
	if len(w) > 0 {
		if _, err := unix.Write(b.fd, w); err != nil {
			return fmt.Errorf("platform: %s write: %w", b.path, err)
		}
	}
	if len(r) > 0 {
		if _, err := unix.Read(b.fd, r); err != nil {
			return fmt.Errorf("platform: %s read: %w", b.path, err)
		}
	}
	return nil
}
