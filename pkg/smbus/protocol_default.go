package smbus

import (
	"github.com/mscrnt/spdtool/pkg/hwio"
)

// Host controller register block of the legacy Intel ICH/PCH and AMD
// FCH/Hudson-2 SMBus, relative to the I/O port base from BAR4 (Intel)
// or the PM indirect registers (AMD).
const (
	smbHstSts  = 0x00
	smbHstCnt  = 0x02
	smbHstCmd  = 0x03
	smbHstAdd  = 0x04
	smbHstDat0 = 0x05
	smbHstDat1 = 0x06
)

// Host status register bits.
const (
	stsHostBusy     = 0x01
	stsInterrupt    = 0x02
	stsDeviceErr    = 0x04
	stsBusCollision = 0x08
	stsFailed       = 0x10

	stsErrorMask = stsFailed | stsBusCollision | stsDeviceErr
	stsClearMask = stsInterrupt | stsDeviceErr | stsBusCollision | stsFailed
)

// Host control register bits.
const (
	cntInterruptEnable = 0x01
	cntKill            = 0x02
	cntStart           = 0x40

	cntQuick    = 0x00
	cntByte     = 0x04
	cntByteData = 0x08
	cntWordData = 0x0C
)

// AMD exposes extra logical buses as register blocks at a fixed port
// stride from the primary block.
const amdBusStride = 20

// defaultProtocol drives the I/O-port mapped SMBus host found on Intel
// ICH/PCH and AMD FCH/Hudson-2 southbridges.
type defaultProtocol struct {
	backend  hwio.Backend
	cfg      *Config
	portBase uint16
	vendor   uint16
}

func (p *defaultProtocol) supportsBus(bus uint8) bool {
	if p.vendor == VendorAMD {
		return bus < 2
	}
	return bus == 0
}

// base returns the register block base for the transaction's bus.
func (p *defaultProtocol) base(bus uint8) uint16 {
	return p.portBase + uint16(bus)*amdBusStride
}

func decodeDefaultStatus(sts uint8) Status {
	switch {
	case sts&stsErrorMask != 0:
		return StatusError
	case sts&stsHostBusy != 0:
		return StatusBusy
	case sts&stsInterrupt != 0:
		return StatusSuccess
	default:
		return StatusReady
	}
}

func controlBits(cmd Command) uint8 {
	switch cmd {
	case CmdQuick:
		return cntQuick
	case CmdByte:
		return cntByte
	case CmdWordData:
		return cntWordData
	default:
		return cntByteData
	}
}

func (p *defaultProtocol) readStatus(base uint16) (Status, error) {
	sts, err := p.backend.ReadPortByte(base + smbHstSts)
	if err != nil {
		return StatusError, err
	}
	return decodeDefaultStatus(sts), nil
}

func (p *defaultProtocol) execute(t *Transaction) bool {
	if !p.supportsBus(t.Bus) {
		t.Status = StatusAborted
		return false
	}
	base := p.base(t.Bus)

	// Clear stale error and interrupt bits by writing them back.
	if err := p.backend.WritePortByte(base+smbHstSts, stsClearMask); err != nil {
		t.Status = StatusError
		return false
	}

	t.Status = pollUntil(p.cfg, func() (Status, error) { return p.readStatus(base) },
		func(s Status) bool { return s == StatusReady || s == StatusError })
	if t.Status != StatusReady {
		if t.Status == StatusTimeout {
			p.abort(base)
		}
		return false
	}

	addr := t.Address << 1
	if t.Access == AccessRead {
		addr |= 0x01
	}
	if err := p.backend.WritePortByte(base+smbHstAdd, addr); err != nil {
		t.Status = StatusError
		return false
	}
	if t.Access == AccessWrite {
		if err := p.backend.WritePortByte(base+smbHstDat0, t.Input); err != nil {
			t.Status = StatusError
			return false
		}
	}
	if err := p.backend.WritePortByte(base+smbHstCmd, uint8(t.Offset)); err != nil {
		t.Status = StatusError
		return false
	}

	control := cntInterruptEnable | controlBits(t.Command) | cntStart
	if err := p.backend.WritePortByte(base+smbHstCnt, control); err != nil {
		t.Status = StatusError
		return false
	}

	writeSettle(p.cfg, t)

	t.Status = pollUntil(p.cfg, func() (Status, error) { return p.readStatus(base) }, terminal)
	if t.Status == StatusTimeout {
		p.abort(base)
		return false
	}
	if t.Status == StatusError {
		return false
	}

	if t.Access == AccessRead {
		out, err := p.backend.ReadPortByte(base + smbHstDat0)
		if err != nil {
			t.Status = StatusError
			return false
		}
		t.Output = out
	}
	return true
}

// abort kills the in-flight host command so the controller is not left
// half-started for the next transaction.
func (p *defaultProtocol) abort(base uint16) {
	_ = p.backend.WritePortByte(base+smbHstCnt, cntKill)
}
