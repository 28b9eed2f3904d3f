package smbus

import (
	"time"

	"github.com/mscrnt/spdtool/pkg/hwio"
)

// Register block of the Nvidia MCP SMBus host, relative to the I/O port
// base from BAR4. Same layout as the nForce2 generation onward.
const (
	nvRegProtocol = 0x00
	nvRegStatus   = 0x01
	nvRegAddress  = 0x02
	nvRegCommand  = 0x03
	nvRegData     = 0x04
)

// Protocol register encodings. The read/write bit is OR-ed with the
// command type pattern.
const (
	nvProtoWrite    = 0x00
	nvProtoRead     = 0x01
	nvProtoQuick    = 0x02
	nvProtoByte     = 0x04
	nvProtoByteData = 0x06
	nvProtoWordData = 0x08
)

// Status byte values. The hardware busy encoding is undocumented, so
// anything other than these three literals reads as an error.
const (
	nvStsDone    = 0x80
	nvStsError   = 0x1F
	nvStsIllegal = 0x10
)

// nvidiaProtocol drives the single-bus MCP SMBus host through I/O ports.
type nvidiaProtocol struct {
	backend  hwio.Backend
	cfg      *Config
	portBase uint16
}

func (p *nvidiaProtocol) supportsBus(bus uint8) bool {
	return bus == 0
}

func decodeNvidiaStatus(sts uint8) Status {
	switch sts {
	case nvStsDone:
		return StatusSuccess
	case nvStsError, nvStsIllegal:
		return StatusError
	default:
		return StatusError
	}
}

func nvidiaProtoBits(cmd Command) uint8 {
	switch cmd {
	case CmdQuick:
		return nvProtoQuick
	case CmdByte:
		return nvProtoByte
	case CmdWordData:
		return nvProtoWordData
	default:
		return nvProtoByteData
	}
}

func (p *nvidiaProtocol) readStatus() (Status, error) {
	sts, err := p.backend.ReadPortByte(p.portBase + nvRegStatus)
	if err != nil {
		return StatusError, err
	}
	return decodeNvidiaStatus(sts), nil
}

func (p *nvidiaProtocol) execute(t *Transaction) bool {
	if !p.supportsBus(t.Bus) {
		t.Status = StatusAborted
		return false
	}

	if err := p.backend.WritePortByte(p.portBase+nvRegAddress, t.Address<<1); err != nil {
		t.Status = StatusError
		return false
	}
	if err := p.backend.WritePortByte(p.portBase+nvRegCommand, uint8(t.Offset)); err != nil {
		t.Status = StatusError
		return false
	}

	proto := nvidiaProtoBits(t.Command)
	if t.Access == AccessWrite {
		if err := p.backend.WritePortByte(p.portBase+nvRegData, t.Input); err != nil {
			t.Status = StatusError
			return false
		}
		proto |= nvProtoWrite
	} else {
		proto |= nvProtoRead
	}
	if err := p.backend.WritePortByte(p.portBase+nvRegProtocol, proto); err != nil {
		t.Status = StatusError
		return false
	}

	if t.Access == AccessWrite {
		delay := p.cfg.WriteDelay
		if isEepromAddress(t.Address) {
			delay *= 2
		}
		time.Sleep(delay)
	}

	t.Status = pollUntil(p.cfg, p.readStatus,
		func(s Status) bool { return s == StatusSuccess || s == StatusError })
	if t.Status != StatusSuccess {
		return false
	}

	if t.Access == AccessRead {
		out, err := p.backend.ReadPortByte(p.portBase + nvRegData)
		if err != nil {
			t.Status = StatusError
			return false
		}
		t.Output = out
	}
	return true
}
