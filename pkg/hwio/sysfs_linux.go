//go:build linux
// +build linux

package hwio

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	sysfsPCIPath = "/sys/bus/pci/devices"
	devPortPath  = "/dev/port"
)

// SysfsBackend implements Backend on Linux using sysfs PCI config files
// and /dev/port for legacy I/O port access. Requires root.
type SysfsBackend struct {
	pciPath string
	port    *os.File
}

// Open creates the platform backend. On Linux this opens /dev/port and
// verifies sysfs PCI enumeration is available.
func Open() (Backend, error) {
	return openSysfs(sysfsPCIPath, devPortPath)
}

// OpenSysfs creates a sysfs backend rooted at custom paths, for tests.
func OpenSysfs(pciPath, portPath string) (*SysfsBackend, error) {
	return openSysfs(pciPath, portPath)
}

func openSysfs(pciPath, portPath string) (*SysfsBackend, error) {
	if _, err := os.Stat(pciPath); err != nil {
		return nil, fmt.Errorf("hwio: sysfs PCI enumeration unavailable: %w", err)
	}
	port, err := os.OpenFile(portPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("hwio: open %s: %w", portPath, err)
	}
	return &SysfsBackend{pciPath: pciPath, port: port}, nil
}

// parseBDF parses a sysfs device directory name ("0000:00:1f.3").
func parseBDF(name string) (DeviceHandle, bool) {
	var domain, bus, device, function uint64
	parts := strings.Split(name, ":")
	if len(parts) != 3 {
		return DeviceHandle{}, false
	}
	df := strings.Split(parts[2], ".")
	if len(df) != 2 {
		return DeviceHandle{}, false
	}
	var err error
	if domain, err = strconv.ParseUint(parts[0], 16, 16); err != nil || domain != 0 {
		return DeviceHandle{}, false
	}
	if bus, err = strconv.ParseUint(parts[1], 16, 8); err != nil {
		return DeviceHandle{}, false
	}
	if device, err = strconv.ParseUint(df[0], 16, 8); err != nil {
		return DeviceHandle{}, false
	}
	if function, err = strconv.ParseUint(df[1], 16, 8); err != nil {
		return DeviceHandle{}, false
	}
	return DeviceHandle{Bus: uint8(bus), Device: uint8(device), Function: uint8(function)}, true
}

func (b *SysfsBackend) devicePath(dev DeviceHandle) string {
	return filepath.Join(b.pciPath, fmt.Sprintf("0000:%02x:%02x.%x", dev.Bus, dev.Device, dev.Function))
}

func (b *SysfsBackend) readHexAttr(dir, attr string) (uint32, error) {
	raw, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(s, "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// FindDeviceByID scans sysfs for the first function matching vendor/device.
func (b *SysfsBackend) FindDeviceByID(vendorID, deviceID uint16) (DeviceHandle, error) {
	return b.find(func(dir string) bool {
		vendor, err := b.readHexAttr(dir, "vendor")
		if err != nil || uint16(vendor) != vendorID {
			return false
		}
		device, err := b.readHexAttr(dir, "device")
		return err == nil && uint16(device) == deviceID
	})
}

// FindDeviceByClass scans sysfs for the first function matching base/sub class.
func (b *SysfsBackend) FindDeviceByClass(baseClass, subClass uint8) (DeviceHandle, error) {
	return b.find(func(dir string) bool {
		class, err := b.readHexAttr(dir, "class")
		if err != nil {
			return false
		}
		return uint8(class>>16) == baseClass && uint8(class>>8) == subClass
	})
}

func (b *SysfsBackend) find(match func(dir string) bool) (DeviceHandle, error) {
	entries, err := os.ReadDir(b.pciPath)
	if err != nil {
		return DeviceHandle{}, fmt.Errorf("hwio: read %s: %w", b.pciPath, err)
	}
	for _, entry := range entries {
		dev, ok := parseBDF(entry.Name())
		if !ok {
			continue
		}
		if match(filepath.Join(b.pciPath, entry.Name())) {
			return dev, nil
		}
	}
	return DeviceHandle{}, ErrDeviceNotFound
}

func (b *SysfsBackend) readConfig(dev DeviceHandle, offset uint16, buf []byte) error {
	f, err := os.Open(filepath.Join(b.devicePath(dev), "config"))
	if err != nil {
		return fmt.Errorf("hwio: config read %s: %w", dev, err)
	}
	defer f.Close()
	if _, err := f.ReadAt(buf, int64(offset)); err != nil {
		return fmt.Errorf("hwio: config read %s+0x%02x: %w", dev, offset, err)
	}
	return nil
}

func (b *SysfsBackend) writeConfig(dev DeviceHandle, offset uint16, buf []byte) error {
	f, err := os.OpenFile(filepath.Join(b.devicePath(dev), "config"), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("hwio: config write %s: %w", dev, err)
	}
	defer f.Close()
	if _, err := f.WriteAt(buf, int64(offset)); err != nil {
		return fmt.Errorf("hwio: config write %s+0x%02x: %w", dev, offset, err)
	}
	return nil
}

func (b *SysfsBackend) ReadConfigByte(dev DeviceHandle, offset uint16) (uint8, error) {
	var buf [1]byte
	if err := b.readConfig(dev, offset, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *SysfsBackend) ReadConfigWord(dev DeviceHandle, offset uint16) (uint16, error) {
	if err := checkAlign(offset, 2); err != nil {
		return 0, err
	}
	var buf [2]byte
	if err := b.readConfig(dev, offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (b *SysfsBackend) ReadConfigDword(dev DeviceHandle, offset uint16) (uint32, error) {
	if err := checkAlign(offset, 4); err != nil {
		return 0, err
	}
	var buf [4]byte
	if err := b.readConfig(dev, offset, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (b *SysfsBackend) WriteConfigByte(dev DeviceHandle, offset uint16, value uint8) error {
	return b.writeConfig(dev, offset, []byte{value})
}

func (b *SysfsBackend) WriteConfigWord(dev DeviceHandle, offset uint16, value uint16) error {
	if err := checkAlign(offset, 2); err != nil {
		return err
	}
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)
	return b.writeConfig(dev, offset, buf[:])
}

func (b *SysfsBackend) WriteConfigDword(dev DeviceHandle, offset uint16, value uint32) error {
	if err := checkAlign(offset, 4); err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return b.writeConfig(dev, offset, buf[:])
}

func (b *SysfsBackend) ReadPortByte(port uint16) (uint8, error) {
	var buf [1]byte
	if _, err := b.port.ReadAt(buf[:], int64(port)); err != nil {
		return 0, fmt.Errorf("hwio: port read 0x%04x: %w", port, err)
	}
	return buf[0], nil
}

func (b *SysfsBackend) WritePortByte(port uint16, value uint8) error {
	if _, err := b.port.WriteAt([]byte{value}, int64(port)); err != nil {
		return fmt.Errorf("hwio: port write 0x%04x: %w", port, err)
	}
	return nil
}

func (b *SysfsBackend) Close() error {
	return b.port.Close()
}
