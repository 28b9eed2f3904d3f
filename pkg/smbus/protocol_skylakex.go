package smbus

import (
	"github.com/mscrnt/spdtool/pkg/hwio"
)

// Register block of the Skylake-X/Cascade Lake-X CPU-integrated SMBus,
// in the config space of PCI function 0x2085. Each register is a dword
// indexed by busNumber*4 from its base.
const (
	skxRegStatus  uint16 = 0x0180
	skxRegCommand uint16 = 0x0188
	skxRegInput   uint16 = 0x0190
	skxRegOutput  uint16 = 0x0198

	skxBusStride = 4
)

// Command register layout: offset byte in bits 0-7, slave address with
// the read bit (bit 7) in bits 8-15, command nibble in bits 16-23 and
// the byte-read enable in bits 24-31.
const (
	skxCmdByteData    uint32 = 0x02
	skxCmdStart       uint32 = 0x08
	skxEnableByteRead uint32 = 0x20
	skxAddressRead    uint32 = 0x80
)

// Status register bits.
const (
	skxStsBusy     = 0x01
	skxStsComplete = 0x02
	skxStsNack     = 0x04
)

// skylakeXProtocol drives the CPU-integrated SMBus through PCI config
// space dword accesses.
type skylakeXProtocol struct {
	backend hwio.Backend
	cfg     *Config
	dev     hwio.DeviceHandle
}

func (p *skylakeXProtocol) supportsBus(bus uint8) bool {
	return bus < 2
}

func skxReg(base uint16, bus uint8) uint16 {
	return base + uint16(bus)*skxBusStride
}

func decodeSkylakeXStatus(sts uint32) Status {
	switch {
	case sts&skxStsBusy != 0:
		return StatusBusy
	case sts&skxStsComplete != 0 && sts&skxStsNack != 0:
		return StatusError
	case sts&skxStsComplete != 0:
		return StatusSuccess
	default:
		return StatusReady
	}
}

func (p *skylakeXProtocol) readStatus(bus uint8) (Status, error) {
	sts, err := p.backend.ReadConfigDword(p.dev, skxReg(skxRegStatus, bus))
	if err != nil {
		return StatusError, err
	}
	return decodeSkylakeXStatus(sts), nil
}

func (p *skylakeXProtocol) execute(t *Transaction) bool {
	if !p.supportsBus(t.Bus) {
		t.Status = StatusAborted
		return false
	}

	if t.Access == AccessWrite {
		if err := p.backend.WriteConfigDword(p.dev, skxReg(skxRegInput, t.Bus), uint32(t.Input)); err != nil {
			t.Status = StatusError
			return false
		}
	}

	address := uint32(t.Address)
	if t.Access == AccessRead {
		address |= skxAddressRead
	}
	command := skxEnableByteRead<<24 |
		(skxCmdByteData|skxCmdStart)<<16 |
		address<<8 |
		uint32(uint8(t.Offset))
	if err := p.backend.WriteConfigDword(p.dev, skxReg(skxRegCommand, t.Bus), command); err != nil {
		t.Status = StatusError
		return false
	}

	writeSettle(p.cfg, t)

	t.Status = pollUntil(p.cfg, func() (Status, error) { return p.readStatus(t.Bus) }, terminal)
	if t.Status == StatusError || t.Status == StatusTimeout {
		return false
	}

	if t.Access == AccessRead {
		out, err := p.backend.ReadConfigDword(p.dev, skxReg(skxRegOutput, t.Bus))
		if err != nil {
			t.Status = StatusError
			return false
		}
		t.Output = uint8(out)
	}
	return true
}
