package smbus

import (
	"errors"
	"fmt"

	"github.com/mscrnt/spdtool/pkg/hwio"
)

// PCI vendor IDs of supported chipset makers.
const (
	VendorAMD    uint16 = 0x1022
	VendorATI    uint16 = 0x1002
	VendorIntel  uint16 = 0x8086
	VendorNvidia uint16 = 0x10DE
)

// Family is the SMBus controller family the transaction engine drives.
type Family int

const (
	// FamilyUnknown means the chipset is not in the supported catalog.
	// Every transaction fails fast without touching hardware.
	FamilyUnknown Family = iota
	// FamilyDefault covers Intel ICH/PCH, AMD FCH/Hudson-2 and Nvidia MCP
	// controllers reached through an I/O port block.
	FamilyDefault
	// FamilySkylakeX covers the CPU-integrated SMBus on Skylake-X and
	// Cascade Lake-X parts, reached through PCI config space.
	FamilySkylakeX
)

func (f Family) String() string {
	switch f {
	case FamilyDefault:
		return "Default"
	case FamilySkylakeX:
		return "SkylakeX"
	default:
		return "Unknown"
	}
}

// PlatformInfo identifies the host chipset. Immutable once detected.
type PlatformInfo struct {
	VendorID uint16
	DeviceID uint16
}

func (p PlatformInfo) String() string {
	name, ok := chipsetCatalog[p.DeviceID]
	if !ok {
		name = "unknown"
	}
	return fmt.Sprintf("%04x:%04x (%s)", p.VendorID, p.DeviceID, name)
}

// Chipset device IDs with special handling.
const (
	// Skylake-X / Cascade Lake-X LPC IDs selecting the CPU-integrated path.
	deviceX299 uint16 = 0xA2D2
	deviceC422 uint16 = 0xA2D3

	// CPU-integrated SMBus PCI function on Skylake-X.
	deviceSkylakeXSmbus uint16 = 0x2085

	// AMD SMBus function IDs with revision-gated port base discovery.
	deviceAmdFch     uint16 = 0x790B
	deviceAmdHudson2 uint16 = 0x780B
)

// chipsetCatalog is the fixed table of supported chipset device IDs.
// Intel entries are LPC/ISA bridge IDs; AMD and Nvidia entries are the
// IDs of the SMBus function itself.
var chipsetCatalog = map[uint16]string{
	// Intel ICH generations
	0x2410: "ICH", 0x2420: "ICH0", 0x2440: "ICH2", 0x244C: "ICH2-M",
	0x2450: "C-ICH", 0x2480: "ICH3-S", 0x248C: "ICH3-M",
	0x24C0: "ICH4", 0x24CC: "ICH4-M", 0x24D0: "ICH5",
	0x2640: "ICH6", 0x2641: "ICH6-M", 0x2642: "ICH6W",
	0x27B0: "ICH7DH", 0x27B8: "ICH7", 0x27B9: "ICH7-M", 0x27BD: "ICH7-MDH",
	0x2810: "ICH8", 0x2811: "ICH8M-E", 0x2812: "ICH8DH", 0x2814: "ICH8DO", 0x2815: "ICH8M",
	0x2912: "ICH9DH", 0x2914: "ICH9DO", 0x2916: "ICH9R", 0x2917: "ICH9M-E",
	0x2918: "ICH9", 0x2919: "ICH9M",
	0x3A14: "ICH10DO", 0x3A16: "ICH10R", 0x3A18: "ICH10", 0x3A1A: "ICH10D",

	// Intel 5-series PCH
	0x3B02: "P55", 0x3B03: "PM55", 0x3B06: "H55", 0x3B07: "QM57",
	0x3B08: "H57", 0x3B09: "HM55", 0x3B0A: "Q57", 0x3B0B: "HM57",
	0x3B0D: "PCH 3400-M", 0x3B0F: "QS57", 0x3B12: "3400", 0x3B14: "3420", 0x3B16: "3450",

	// Intel 6-series PCH
	0x1C44: "Z68", 0x1C46: "P67", 0x1C47: "UM67", 0x1C49: "HM65",
	0x1C4A: "H67", 0x1C4B: "HM67", 0x1C4C: "Q65", 0x1C4D: "QS67",
	0x1C4E: "Q67", 0x1C4F: "QM67", 0x1C50: "B65", 0x1C52: "C202",
	0x1C54: "C204", 0x1C56: "C206", 0x1C5C: "H61",

	// Intel 7-series PCH
	0x1E44: "Z77", 0x1E46: "Z75", 0x1E47: "Q77", 0x1E48: "Q75",
	0x1E49: "B75", 0x1E4A: "H77", 0x1E53: "C216", 0x1E55: "QM77",
	0x1E56: "QS77", 0x1E57: "HM77", 0x1E58: "UM77", 0x1E59: "HM76",
	0x1E5D: "HM75", 0x1E5E: "HM70", 0x1E5F: "NM70",

	// Intel 8-series PCH
	0x8C44: "Z87", 0x8C46: "Z85", 0x8C49: "HM86", 0x8C4A: "H87",
	0x8C4B: "HM87", 0x8C4C: "Q85", 0x8C4E: "Q87", 0x8C4F: "QM87",
	0x8C50: "B85", 0x8C52: "C222", 0x8C54: "C224", 0x8C56: "C226",
	0x8C5C: "H81",

	// Intel 9-series PCH
	0x8CC2: "9-series", 0x8CC4: "Z97", 0x8CC6: "H97",

	// Intel HEDT
	0x1D41: "X79", 0x8D44: "X99", 0x8D47: "C610",
	deviceX299: "X299", deviceC422: "C422",

	// AMD
	deviceAmdFch: "FCH", deviceAmdHudson2: "Hudson-2",

	// Nvidia MCP
	0x0034: "MCP04", 0x0052: "CK804", 0x0064: "nForce2",
	0x0084: "nForce2 Ultra", 0x00D4: "nForce3", 0x00E4: "nForce3 250",
	0x0264: "MCP51", 0x0368: "MCP55", 0x03EB: "MCP61", 0x0446: "MCP65",
	0x0542: "MCP67", 0x0752: "MCP78S", 0x07D8: "MCP73", 0x0AA2: "MCP79",
	0x0D79: "MCP89",
}

// ErrUnsupportedPlatform is returned when the detected chipset is not in
// the supported catalog. No transaction touches hardware in that state.
var ErrUnsupportedPlatform = errors.New("smbus: unsupported platform")

// DetectPlatform classifies the host chipset. The vendor comes from the
// root host bridge; the device ID comes from the ISA/LPC bridge on Intel
// and from the SMBus function itself on AMD and Nvidia. Discovery failure
// is not fatal: it yields a zero DeviceID, which classifies as Unknown.
func DetectPlatform(backend hwio.Backend) (PlatformInfo, error) {
	root := hwio.DeviceHandle{}
	vendor, err := backend.ReadConfigWord(root, 0x00)
	if err != nil {
		return PlatformInfo{}, fmt.Errorf("smbus: read host bridge vendor: %w", err)
	}

	info := PlatformInfo{VendorID: vendor}

	var dev hwio.DeviceHandle
	switch vendor {
	case VendorIntel:
		dev, err = backend.FindDeviceByClass(hwio.ClassBridge, hwio.SubclassISA)
	case VendorAMD, VendorATI, VendorNvidia:
		dev, err = backend.FindDeviceByClass(hwio.ClassSerial, hwio.SubclassSMBus)
	default:
		return info, nil
	}
	if err != nil {
		if errors.Is(err, hwio.ErrDeviceNotFound) {
			return info, nil
		}
		return info, err
	}

	id, err := backend.ReadConfigWord(dev, 0x02)
	if err != nil {
		return info, err
	}
	info.DeviceID = id
	return info, nil
}

// ClassifyFamily maps a detected platform onto a controller family.
func ClassifyFamily(info PlatformInfo) Family {
	switch info.DeviceID {
	case deviceX299, deviceC422:
		return FamilySkylakeX
	}
	if _, ok := chipsetCatalog[info.DeviceID]; ok {
		return FamilyDefault
	}
	return FamilyUnknown
}
