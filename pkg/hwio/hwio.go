// Package hwio provides raw hardware register access: PCI configuration
// space reads/writes, PCI device discovery, and x86 I/O port access.
// All of it requires elevated privileges and a platform-specific backend.
package hwio

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound is returned by discovery when no PCI function matches.
	ErrDeviceNotFound = errors.New("hwio: PCI device not found")

	// ErrUnaligned is returned for word/dword config access at offsets that
	// are not naturally aligned.
	ErrUnaligned = errors.New("hwio: unaligned config space access")

	// ErrUnsupported is returned by Open on platforms without a backend.
	ErrUnsupported = errors.New("hwio: no backend available on this platform")
)

// DeviceHandle identifies a PCI function by its bus/device/function address.
type DeviceHandle struct {
	Bus      uint8
	Device   uint8
	Function uint8
}

// String returns the short BDF representation: "BB:DD.F".
func (h DeviceHandle) String() string {
	return fmt.Sprintf("%02x:%02x.%x", h.Bus, h.Device, h.Function)
}

// Backend is the privileged register access layer the SMBus engine runs on.
// Implementations are not safe for concurrent use; callers must serialize.
type Backend interface {
	// FindDeviceByID locates the first PCI function with the given vendor
	// and device ID. Returns ErrDeviceNotFound if absent.
	FindDeviceByID(vendorID, deviceID uint16) (DeviceHandle, error)

	// FindDeviceByClass locates the first PCI function with the given base
	// class and subclass codes. Returns ErrDeviceNotFound if absent.
	FindDeviceByClass(baseClass, subClass uint8) (DeviceHandle, error)

	ReadConfigByte(dev DeviceHandle, offset uint16) (uint8, error)
	ReadConfigWord(dev DeviceHandle, offset uint16) (uint16, error)
	ReadConfigDword(dev DeviceHandle, offset uint16) (uint32, error)

	WriteConfigByte(dev DeviceHandle, offset uint16, value uint8) error
	WriteConfigWord(dev DeviceHandle, offset uint16, value uint16) error
	WriteConfigDword(dev DeviceHandle, offset uint16, value uint32) error

	ReadPortByte(port uint16) (uint8, error)
	WritePortByte(port uint16, value uint8) error

	Close() error
}

// checkAlign validates natural alignment for multi-byte config access.
func checkAlign(offset uint16, width uint16) error {
	if offset%width != 0 {
		return fmt.Errorf("%w: offset 0x%02x, width %d", ErrUnaligned, offset, width)
	}
	return nil
}

// PCI class codes used for SMBus controller discovery.
const (
	ClassBridge   uint8 = 0x06
	ClassSerial   uint8 = 0x0C
	SubclassISA   uint8 = 0x01
	SubclassSMBus uint8 = 0x05
)
