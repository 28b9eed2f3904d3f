package smbus

// Access selects the transfer direction of a transaction.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
)

// Command selects the SMBus sub-protocol used for a transaction.
type Command int

const (
	CmdQuick Command = iota
	CmdByte
	CmdByteData
	CmdWordData
)

// Status is the outcome of a transaction. Success, Error and Timeout are
// terminal; Ready and Busy are intermediate polling states.
type Status int

const (
	StatusReady Status = iota
	StatusBusy
	StatusError
	StatusSuccess
	StatusTimeout
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusBusy:
		return "busy"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	case StatusTimeout:
		return "timeout"
	case StatusAborted:
		return "aborted"
	default:
		return "invalid"
	}
}

// Transaction is one SMBus host command. Created fresh per call; the
// engine fills Output and Status.
type Transaction struct {
	Bus     uint8
	Address uint8 // 7-bit slave address
	Offset  uint16
	Access  Access
	Command Command
	Input   uint8
	Output  uint8
	Status  Status
}

// EEPROM slave address range probed for SPD devices.
const (
	EepromAddressMin uint8 = 0x50
	EepromAddressMax uint8 = 0x57
)

// isEepromAddress reports whether addr is in the SPD EEPROM range.
// Writes to these devices need extra settle time for the internal
// EEPROM write cycle.
func isEepromAddress(addr uint8) bool {
	return addr >= EepromAddressMin && addr <= EepromAddressMax
}
