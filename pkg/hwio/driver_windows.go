//go:build windows
// +build windows

package hwio

import (
	"fmt"
	"log"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc/mgr"
)

// DriverBackend implements Backend on Windows through a WinRing0-compatible
// kernel driver. The driver is installed as a kernel service on first use
// and removed on Close.
type DriverBackend struct {
	handle      windows.Handle
	service     *mgr.Service
	serviceMgr  *mgr.Mgr
	ownsService bool
}

const (
	driverServiceName = "spdtool_io"
	driverDevicePath  = `\\.\WinRing0_1_2_0`

	olsDeviceType = 40000
)

// ctlCode builds a Windows IOCTL code (CTL_CODE macro).
func ctlCode(deviceType, function, method, access uint32) uint32 {
	return deviceType<<16 | access<<14 | function<<2 | method
}

var (
	ioctlReadIoPortByte  = ctlCode(olsDeviceType, 0x833, 0, 1) // METHOD_BUFFERED, FILE_READ_ACCESS
	ioctlWriteIoPortByte = ctlCode(olsDeviceType, 0x836, 0, 2) // METHOD_BUFFERED, FILE_WRITE_ACCESS
	ioctlReadPciConfig   = ctlCode(olsDeviceType, 0x851, 0, 1)
	ioctlWritePciConfig  = ctlCode(olsDeviceType, 0x852, 0, 2)
)

// Open creates the platform backend. On Windows this installs and starts
// the helper driver service (pointed at by SPDTOOL_DRIVER, a .sys path),
// then opens its device. Requires Administrator.
func Open() (Backend, error) {
	b := &DriverBackend{}

	// An already-running driver instance is usable directly.
	if err := b.openDevice(); err == nil {
		return b, nil
	}

	sysPath := os.Getenv("SPDTOOL_DRIVER")
	if sysPath == "" {
		return nil, fmt.Errorf("hwio: helper driver not running and SPDTOOL_DRIVER not set")
	}
	if err := b.installService(sysPath); err != nil {
		b.Close()
		return nil, fmt.Errorf("hwio: install driver service: %w", err)
	}
	if err := b.openDevice(); err != nil {
		b.Close()
		return nil, fmt.Errorf("hwio: open driver device: %w", err)
	}
	return b, nil
}

func (b *DriverBackend) openDevice() error {
	path, err := windows.UTF16PtrFromString(driverDevicePath)
	if err != nil {
		return err
	}
	h, err := windows.CreateFile(path,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, nil, windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return err
	}
	b.handle = h
	return nil
}

func (b *DriverBackend) installService(sysPath string) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to service manager: %w", err)
	}
	b.serviceMgr = m

	// A stale instance from a previous crash is stopped and removed first.
	if service, err := m.OpenService(driverServiceName); err == nil {
		_, _ = service.Control(windows.SERVICE_CONTROL_STOP)
		_ = service.Delete()
		service.Close()
	}

	service, err := m.CreateService(driverServiceName, sysPath, mgr.Config{
		ServiceType:  windows.SERVICE_KERNEL_DRIVER,
		StartType:    mgr.StartManual,
		ErrorControl: mgr.ErrorNormal,
		DisplayName:  "spdtool register I/O driver",
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	b.service = service
	b.ownsService = true

	if err := service.Start(); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	log.Printf("hwio: installed driver service %s from %s", driverServiceName, sysPath)
	return nil
}

func (b *DriverBackend) ioctl(code uint32, in []byte, out []byte) error {
	var returned uint32
	var inPtr, outPtr *byte
	if len(in) > 0 {
		inPtr = &in[0]
	}
	if len(out) > 0 {
		outPtr = &out[0]
	}
	err := windows.DeviceIoControl(b.handle, code,
		inPtr, uint32(len(in)), outPtr, uint32(len(out)), &returned, nil)
	if err != nil {
		return fmt.Errorf("hwio: ioctl 0x%08x: %w", code, err)
	}
	return nil
}

// pciAddress packs a BDF into the driver's PciBusDevFunc encoding.
func pciAddress(dev DeviceHandle) uint32 {
	return uint32(dev.Bus)<<8 | uint32(dev.Device&0x1F)<<3 | uint32(dev.Function&0x07)
}

func (b *DriverBackend) readConfig(dev DeviceHandle, offset uint16, out []byte) error {
	in := make([]byte, 8)
	*(*uint32)(unsafe.Pointer(&in[0])) = pciAddress(dev)
	*(*uint32)(unsafe.Pointer(&in[4])) = uint32(offset)
	return b.ioctl(ioctlReadPciConfig, in, out)
}

func (b *DriverBackend) writeConfig(dev DeviceHandle, offset uint16, data []byte) error {
	in := make([]byte, 8+len(data))
	*(*uint32)(unsafe.Pointer(&in[0])) = pciAddress(dev)
	*(*uint32)(unsafe.Pointer(&in[4])) = uint32(offset)
	copy(in[8:], data)
	return b.ioctl(ioctlWritePciConfig, in, nil)
}

func (b *DriverBackend) ReadConfigByte(dev DeviceHandle, offset uint16) (uint8, error) {
	var out [1]byte
	if err := b.readConfig(dev, offset, out[:]); err != nil {
		return 0, err
	}
	return out[0], nil
}

func (b *DriverBackend) ReadConfigWord(dev DeviceHandle, offset uint16) (uint16, error) {
	if err := checkAlign(offset, 2); err != nil {
		return 0, err
	}
	var out [2]byte
	if err := b.readConfig(dev, offset, out[:]); err != nil {
		return 0, err
	}
	return uint16(out[0]) | uint16(out[1])<<8, nil
}

func (b *DriverBackend) ReadConfigDword(dev DeviceHandle, offset uint16) (uint32, error) {
	if err := checkAlign(offset, 4); err != nil {
		return 0, err
	}
	var out [4]byte
	if err := b.readConfig(dev, offset, out[:]); err != nil {
		return 0, err
	}
	return uint32(out[0]) | uint32(out[1])<<8 | uint32(out[2])<<16 | uint32(out[3])<<24, nil
}

func (b *DriverBackend) WriteConfigByte(dev DeviceHandle, offset uint16, value uint8) error {
	return b.writeConfig(dev, offset, []byte{value})
}

func (b *DriverBackend) WriteConfigWord(dev DeviceHandle, offset uint16, value uint16) error {
	if err := checkAlign(offset, 2); err != nil {
		return err
	}
	return b.writeConfig(dev, offset, []byte{byte(value), byte(value >> 8)})
}

func (b *DriverBackend) WriteConfigDword(dev DeviceHandle, offset uint16, value uint32) error {
	if err := checkAlign(offset, 4); err != nil {
		return err
	}
	return b.writeConfig(dev, offset,
		[]byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)})
}

func (b *DriverBackend) ReadPortByte(port uint16) (uint8, error) {
	in := make([]byte, 4)
	*(*uint32)(unsafe.Pointer(&in[0])) = uint32(port)
	var out [4]byte
	if err := b.ioctl(ioctlReadIoPortByte, in, out[:]); err != nil {
		return 0, err
	}
	return out[0], nil
}

func (b *DriverBackend) WritePortByte(port uint16, value uint8) error {
	in := make([]byte, 8)
	*(*uint32)(unsafe.Pointer(&in[0])) = uint32(port)
	*(*uint32)(unsafe.Pointer(&in[4])) = uint32(value)
	return b.ioctl(ioctlWriteIoPortByte, in, nil)
}

// FindDeviceByID walks config space over all buses looking for the first
// function with the given vendor and device ID.
func (b *DriverBackend) FindDeviceByID(vendorID, deviceID uint16) (DeviceHandle, error) {
	want := uint32(deviceID)<<16 | uint32(vendorID)
	return b.scan(func(dev DeviceHandle, id uint32) bool {
		return id == want
	})
}

// FindDeviceByClass walks config space looking for the first function with
// the given base class and subclass codes.
func (b *DriverBackend) FindDeviceByClass(baseClass, subClass uint8) (DeviceHandle, error) {
	return b.scan(func(dev DeviceHandle, id uint32) bool {
		class, err := b.ReadConfigDword(dev, 0x08)
		if err != nil {
			return false
		}
		return uint8(class>>24) == baseClass && uint8(class>>16) == subClass
	})
}

func (b *DriverBackend) scan(match func(dev DeviceHandle, id uint32) bool) (DeviceHandle, error) {
	for bus := 0; bus < 256; bus++ {
		for device := 0; device < 32; device++ {
			for function := 0; function < 8; function++ {
				dev := DeviceHandle{Bus: uint8(bus), Device: uint8(device), Function: uint8(function)}
				id, err := b.ReadConfigDword(dev, 0x00)
				if err != nil || id == 0xFFFFFFFF {
					if function == 0 {
						break // no device at all in this slot
					}
					continue
				}
				if match(dev, id) {
					return dev, nil
				}
			}
		}
	}
	return DeviceHandle{}, ErrDeviceNotFound
}

func (b *DriverBackend) Close() error {
	if b.handle != 0 {
		_ = windows.CloseHandle(b.handle)
		b.handle = 0
	}
	if b.service != nil {
		if b.ownsService {
			_, _ = b.service.Control(windows.SERVICE_CONTROL_STOP)
			_ = b.service.Delete()
		}
		b.service.Close()
		b.service = nil
	}
	if b.serviceMgr != nil {
		_ = b.serviceMgr.Disconnect()
		b.serviceMgr = nil
	}
	return nil
}
