// Package spd decodes raw SPD EEPROM contents into module descriptions.
// DDR4 (JEDEC SPD rev 1.x) and DDR5 (rev 1.0+) layouts are supported.
package spd

// Module is a decoded memory module description.
type Module struct {
	Type            string  `json:"type"`
	CapacityGB      float64 `json:"capacityGB"`
	Ranks           int     `json:"ranks"`
	DataWidth       int     `json:"dataWidth"`
	BaseFreqMHz     float64 `json:"baseFreqMHz"`
	DataRateMTs     int     `json:"dataRateMTs"`
	PCRate          int     `json:"pcRate"`
	Manufacturer    string  `json:"manufacturer"`
	PartNumber      string  `json:"partNumber"`
	Serial          string  `json:"serial"`
	ManufactureDate string  `json:"manufactureDate,omitempty"`
	Timings         Timings `json:"timings"`
}

// Timings holds the primary timing parameters in clock cycles.
type Timings struct {
	CL   int `json:"cl"`
	RCD  int `json:"rcd"`
	RP   int `json:"rp"`
	RAS  int `json:"ras"`
	RC   int `json:"rc"`
	RFC  int `json:"rfc"`
	RRDS int `json:"rrd_s"`
	RRDL int `json:"rrd_l"`
	FAW  int `json:"faw"`
}

// DRAM device type codes (SPD byte 2).
const (
	TypeDDR4    = 0x0C
	TypeDDR4E   = 0x0E
	TypeLPDDR4  = 0x10
	TypeLPDDR4X = 0x11
	TypeDDR5    = 0x12
	TypeLPDDR5  = 0x13
)

// IsLikelyValid applies cheap sanity checks to raw SPD bytes: a sane
// revision byte, a known device type and a non-blank first page. Used
// to reject garbage reads from floating bus lines.
func IsLikelyValid(data []byte) bool {
	if len(data) < 128 {
		return false
	}
	revision := data[1]
	if revision < 0x10 || revision > 0x30 {
		return false
	}
	switch data[2] {
	case TypeDDR4, TypeDDR4E, TypeLPDDR4, TypeLPDDR4X, TypeDDR5, TypeLPDDR5:
	default:
		return false
	}
	blank := 0
	for _, b := range data[:128] {
		if b == 0xFF {
			blank++
		}
	}
	return blank < 128
}
