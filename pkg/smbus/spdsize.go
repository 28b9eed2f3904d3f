package smbus

// DRAM device type codes from SPD byte 2.
const (
	MemoryTypeSDR     uint8 = 0x04
	MemoryTypeDDR     uint8 = 0x07
	MemoryTypeDDR2    uint8 = 0x08
	MemoryTypeDDR3    uint8 = 0x0B
	MemoryTypeDDR4    uint8 = 0x0C
	MemoryTypeDDR4E   uint8 = 0x0E
	MemoryTypeLPDDR4  uint8 = 0x10
	MemoryTypeLPDDR4X uint8 = 0x11
	MemoryTypeDDR5    uint8 = 0x12
	MemoryTypeLPDDR5  uint8 = 0x13
)

// Addressable SPD EEPROM sizes in bytes per memory generation.
const (
	SpdSizeMinimum uint16 = 256 // pre-DDR4 parts
	SpdSizeDDR4    uint16 = 512
	SpdSizeDDR5    uint16 = 1024
)

// spdDeviceTypeOffset is the SPD byte holding the DRAM device type.
const spdDeviceTypeOffset uint8 = 2

// SpdSizeForMemoryType maps a DRAM device type byte to the addressable
// SPD size. Unrecognized and legacy types fall back to the minimum size
// so unknown modules still read at least the base page.
func SpdSizeForMemoryType(deviceType uint8) uint16 {
	switch deviceType {
	case MemoryTypeDDR4, MemoryTypeDDR4E, MemoryTypeLPDDR4, MemoryTypeLPDDR4X:
		return SpdSizeDDR4
	case MemoryTypeDDR5, MemoryTypeLPDDR5:
		return SpdSizeDDR5
	default:
		return SpdSizeMinimum
	}
}

// GetMaxSpdSize reads the DRAM device type byte of the EEPROM at the
// given address on the active bus and returns its addressable SPD size.
func (c *Controller) GetMaxSpdSize(address uint8) (uint16, error) {
	deviceType, err := c.ReadByte(c.bus, address, spdDeviceTypeOffset)
	if err != nil {
		return 0, err
	}
	return SpdSizeForMemoryType(deviceType), nil
}
