package spd

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// DDR4 SPD byte offsets (JEDEC SPD rev 1.1).
const (
	ddr4DensityBanks  = 0x04
	ddr4ModuleOrg     = 0x0C
	ddr4BusWidth      = 0x0D
	ddr4MinCycleTime  = 0x12
	ddr4MtbDivisor    = 0x14
	ddr4MtbDividend   = 0x15
	ddr4MinCasLatency = 0x18
	ddr4MinRasToCas   = 0x19
	ddr4MinRowPrechg  = 0x1A
	ddr4UpperNibbles  = 0x1B
	ddr4MinActive     = 0x1C
	ddr4MinRowCycle   = 0x1D
	ddr4MinRfc1       = 0x1E
	ddr4MinFaw        = 0x24
	ddr4MinRrdS       = 0x26
	ddr4MinRrdL       = 0x27
	ddr4MfgIDLsb      = 0x140
	ddr4MfgDateYear   = 0x143
	ddr4MfgDateWeek   = 0x144
	ddr4SerialNumber  = 0x145
	ddr4PartNumber    = 0x149
	ddr4PartNumberLen = 20
)

// DDR5 SPD byte offsets.
const (
	ddr5Density      = 0x04
	ddr5ModuleOrg    = 0x06
	ddr5SpeedGrade   = 0xC0
	ddr5MfgSection   = 0x200
	ddr5SerialNumber = 0x225
	ddr5PartNumber   = 0x209
)

// Decode parses raw SPD bytes into a Module. The device type byte
// selects the layout; unsupported generations are an error.
func Decode(data []byte) (*Module, error) {
	if len(data) < 128 {
		return nil, fmt.Errorf("spd: data too short: %d bytes", len(data))
	}
	switch data[2] {
	case TypeDDR4, TypeDDR4E:
		return decodeDDR4(data, "DDR4")
	case TypeLPDDR4, TypeLPDDR4X:
		return decodeDDR4(data, "LPDDR4")
	case TypeDDR5:
		return decodeDDR5(data, "DDR5")
	case TypeLPDDR5:
		return decodeDDR5(data, "LPDDR5")
	default:
		return nil, fmt.Errorf("spd: unsupported device type 0x%02X", data[2])
	}
}

// ddr4DensityGb maps the SDRAM density field to gigabits per die.
var ddr4DensityGb = map[uint8]int{
	0x02: 1, 0x03: 2, 0x04: 4, 0x05: 8,
	0x06: 16, 0x07: 32, 0x08: 12, 0x09: 24,
}

func decodeDDR4(data []byte, typeName string) (*Module, error) {
	m := &Module{Type: typeName}

	densityGb := ddr4DensityGb[data[ddr4DensityBanks]&0x0F]

	org := data[ddr4ModuleOrg]
	ranks := int((org>>3)&0x07) + 1
	deviceWidth := 4 << (org & 0x07)
	busWidth := 8 << (data[ddr4BusWidth] & 0x07)

	m.Ranks = ranks
	m.DataWidth = busWidth
	m.CapacityGB = float64(densityGb*busWidth*ranks) / float64(8*deviceWidth)

	// Medium timebase in picoseconds.
	dividend := float64(data[ddr4MtbDividend])
	divisor := float64(data[ddr4MtbDivisor])
	if divisor == 0 {
		divisor = 1
	}
	mtb := dividend / divisor * 1000.0

	tCKmin := float64(data[ddr4MinCycleTime]) * mtb
	if tCKmin > 0 {
		m.BaseFreqMHz = 1e6 / tCKmin
		m.DataRateMTs = int(2 * m.BaseFreqMHz)
		m.PCRate = m.DataRateMTs * busWidth / 8
	}

	m.Timings = decodeDDR4Timings(data, mtb, tCKmin)

	if len(data) >= 384 {
		m.Manufacturer = ManufacturerName(data[ddr4MfgIDLsb], data[ddr4MfgIDLsb+1])
		m.PartNumber = strings.TrimSpace(string(data[ddr4PartNumber : ddr4PartNumber+ddr4PartNumberLen]))
		m.Serial = fmt.Sprintf("%08X", binary.LittleEndian.Uint32(data[ddr4SerialNumber:ddr4SerialNumber+4]))
		year, week := data[ddr4MfgDateYear], data[ddr4MfgDateWeek]
		if year != 0 && week != 0 {
			m.ManufactureDate = fmt.Sprintf("20%02d-W%02d", year, week)
		}
	}
	return m, nil
}

// cycles rounds a picosecond delay up to whole clock cycles.
func cycles(ps, tCKmin float64) int {
	if tCKmin <= 0 {
		return 0
	}
	return int((ps + tCKmin - 1) / tCKmin)
}

func decodeDDR4Timings(data []byte, mtb, tCKmin float64) Timings {
	if tCKmin == 0 {
		tCKmin = 625 // assume DDR4-3200 when the cycle time byte is blank
	}

	upper := data[ddr4UpperNibbles]
	tRAS := float64(uint16(data[ddr4MinActive])|uint16(upper&0x0F)<<8) * mtb
	tRC := float64(uint16(data[ddr4MinRowCycle])|uint16(upper>>4)<<8) * mtb
	tRFC := float64(binary.LittleEndian.Uint16(data[ddr4MinRfc1:ddr4MinRfc1+2])) * mtb
	tFAW := float64(binary.LittleEndian.Uint16(data[ddr4MinFaw:ddr4MinFaw+2])&0x0FFF) * mtb

	return Timings{
		CL:   cycles(float64(data[ddr4MinCasLatency])*mtb, tCKmin),
		RCD:  cycles(float64(data[ddr4MinRasToCas])*mtb, tCKmin),
		RP:   cycles(float64(data[ddr4MinRowPrechg])*mtb, tCKmin),
		RAS:  cycles(tRAS, tCKmin),
		RC:   cycles(tRC, tCKmin),
		RFC:  cycles(tRFC, tCKmin),
		RRDS: cycles(float64(data[ddr4MinRrdS])*mtb, tCKmin),
		RRDL: cycles(float64(data[ddr4MinRrdL])*mtb, tCKmin),
		FAW:  cycles(tFAW, tCKmin),
	}
}

// ddr5DensityGb maps the DDR5 density field to gigabits per die.
var ddr5DensityGb = map[uint8]int{
	0x01: 4, 0x02: 8, 0x03: 12, 0x04: 16,
	0x05: 24, 0x06: 32, 0x07: 48, 0x08: 64,
}

// ddr5DataRate maps the speed grade byte to MT/s.
var ddr5DataRate = map[uint8]int{
	0x00: 3200, 0x01: 3600, 0x02: 4000, 0x03: 4400,
	0x04: 4800, 0x05: 5200, 0x06: 5600, 0x07: 6000,
	0x08: 6400, 0x09: 6800, 0x0A: 7200,
}

func decodeDDR5(data []byte, typeName string) (*Module, error) {
	if len(data) < 0x200 {
		return nil, fmt.Errorf("spd: %s data too short: %d bytes", typeName, len(data))
	}
	m := &Module{Type: typeName}

	densityGb := ddr5DensityGb[data[ddr5Density]&0x1F]
	ranks := int((data[ddr5ModuleOrg]>>3)&0x07) + 1

	m.Ranks = ranks
	m.DataWidth = 64
	m.CapacityGB = float64(densityGb*ranks) / 8

	m.DataRateMTs = ddr5DataRate[data[ddr5SpeedGrade]]
	m.BaseFreqMHz = float64(m.DataRateMTs) / 2
	m.PCRate = m.DataRateMTs * 8

	if len(data) > ddr5SerialNumber+4 {
		m.Manufacturer = ManufacturerName(data[ddr5MfgSection], data[ddr5MfgSection+1])
		m.PartNumber = strings.TrimSpace(string(data[ddr5PartNumber : ddr5PartNumber+ddr4PartNumberLen]))
		m.Serial = fmt.Sprintf("%08X", binary.LittleEndian.Uint32(data[ddr5SerialNumber:ddr5SerialNumber+4]))
	}
	return m, nil
}
