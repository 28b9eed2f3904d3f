package smbus

import "errors"

// SPD page selection. EE1004 (DDR4) devices expose two 256 byte pages
// selected by dummy writes to the SPA0/SPA1 slave addresses. SPD5118
// (DDR5) hubs expose eight 128 byte pages selected through register
// MR11 at the device's own address.
const (
	spdPageSizeDDR4 = 256
	spdPageSizeDDR5 = 128

	spdPageAddr0 = 0x36
	spdPageAddr1 = 0x37

	spd5HubPageReg = 0x0B
)

// ReadSPD reads the full SPD contents of the module at address on bus,
// switching EEPROM pages as needed. The image length comes from the
// device type byte. Page selection failures are ignored where the part
// is allowed to NACK the select transaction.
func (c *Controller) ReadSPD(bus, address uint8) ([]byte, error) {
	c.SetBusNumber(bus)

	size, err := c.GetMaxSpdSize(address)
	if err != nil {
		return nil, err
	}

	pageSize := spdPageSizeDDR4
	if size > 512 {
		pageSize = spdPageSizeDDR5
	}

	data := make([]byte, 0, size)
	for page := 0; len(data) < int(size); page++ {
		if err := c.selectPage(bus, address, uint16(size), uint8(page)); err != nil {
			return nil, err
		}
		for off := 0; off < pageSize && len(data) < int(size); off++ {
			b, err := c.ReadByte(bus, address, uint8(off))
			if err != nil {
				_ = c.selectPage(bus, address, uint16(size), 0)
				return nil, err
			}
			data = append(data, b)
		}
	}

	// Leave the part on page 0 for the next reader.
	if err := c.selectPage(bus, address, uint16(size), 0); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Controller) selectPage(bus, address uint8, size uint16, page uint8) error {
	switch {
	case size <= spdPageSizeDDR4:
		return nil
	case size <= 512:
		// EE1004: the select is a write to SPA0/SPA1, data ignored.
		// Parts NACK the tail of the transaction, so a device error
		// here is expected.
		target := uint8(spdPageAddr0)
		if page != 0 {
			target = spdPageAddr1
		}
		if err := c.WriteByte(bus, target, 0x00, 0x00); err != nil {
			if errors.Is(err, ErrNotReady) || errors.Is(err, ErrInvalidBus) {
				return err
			}
		}
		return nil
	default:
		return c.WriteByte(bus, address, spd5HubPageReg, page)
	}
}
