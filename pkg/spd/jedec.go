package spd

import "fmt"

// jedecManufacturers maps (msb<<8 | lsb) JEDEC ID codes to vendor names.
// Covers the common DRAM module makers; anything else falls back to the
// bank/index form.
var jedecManufacturers = map[uint16]string{
	0x2C80: "Micron",
	0xCE80: "Samsung",
	0xAD80: "SK Hynix",
	0x4F01: "Transcend",
	0x9801: "Kingston",
	0x0B83: "A-DATA",
	0xCD04: "G.Skill",
	0x9B05: "Crucial",
	0x2503: "Kingmax",
	0x029E: "Corsair",
	0xC102: "Infineon",
	0x5105: "Qimonda",
	0xB304: "Team Group",
	0x3A08: "Patriot",
}

// ManufacturerName resolves a JEDEC manufacturer ID pair to a vendor
// name, or the raw bank/index form when the ID is not in the table.
func ManufacturerName(lsb, msb uint8) string {
	if name, ok := jedecManufacturers[uint16(msb)<<8|uint16(lsb)]; ok {
		return name
	}
	bank := (msb & 0x7F) + 1
	index := lsb & 0x7F
	return fmt.Sprintf("Bank %d, 0x%02X", bank, index)
}
