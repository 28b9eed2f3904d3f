package smbus

import (
	"errors"
	"fmt"
	"log"

	"github.com/mscrnt/spdtool/pkg/hwio"
)

var (
	// ErrNotReady is returned when no supported controller was acquired.
	ErrNotReady = errors.New("smbus: controller not initialized")
	// ErrTimeout means the controller never reached a terminal status.
	// Callers may retry; the command was aborted before returning.
	ErrTimeout = errors.New("smbus: transaction timeout")
	// ErrTransaction means the controller reported a hardware error
	// (NACK, bus collision, failed). Not retryable.
	ErrTransaction = errors.New("smbus: transaction failed")
	// ErrInvalidBus means the platform does not expose the bus number.
	ErrInvalidBus = errors.New("smbus: bus not supported")
)

// AMD PM indirect index/data ports carrying the SMBus base-address
// enable register on FCH rev 0x49+ and Hudson-2 rev 0x41+.
const (
	amdPmIndexPort uint16 = 0xCD6
	amdPmDataPort  uint16 = 0xCD7

	amdPmSmbusEnLo uint8 = 0x2C
	amdPmSmbusEnHi uint8 = 0x2D
)

// Intel host configuration register; bit 4 is the BIOS "SPD write
// disable" flag. Informational only, never enforced by the engine.
const (
	intelHostConfigOffset uint16 = 0x40
	intelSpdWriteDisable  uint8  = 0x10
)

// pciBar4Offset is the config offset of the I/O port base BAR.
const pciBar4Offset uint16 = 0x20

// Controller owns one detected SMBus host: platform classification,
// controller handle and active bus number. Not safe for concurrent use;
// register sequences are multi-step and a caller must serialize.
type Controller struct {
	backend hwio.Backend
	cfg     Config

	platform PlatformInfo
	family   Family
	proto    protocol
	bus      uint8

	spdWriteDisabled bool

	// OnBusChange is invoked after every SetBusNumber call so dependent
	// cached state (such as the SPD layer's EEPROM page register) can be
	// reset. May be nil.
	OnBusChange func(bus uint8)
}

// New creates a controller on the given backend. A nil cfg selects the
// production timing parameters.
func New(backend hwio.Backend, cfg *Config) *Controller {
	c := &Controller{backend: backend, cfg: DefaultConfig()}
	if cfg != nil {
		c.cfg = *cfg
	}
	return c
}

// Initialize detects the platform, classifies the controller family and
// acquires the controller handle. The returned PlatformInfo is valid
// even when an error leaves the controller not ready.
func (c *Controller) Initialize() (PlatformInfo, error) {
	info, err := DetectPlatform(c.backend)
	if err != nil {
		return info, err
	}
	c.platform = info
	c.family = ClassifyFamily(info)

	if c.family == FamilyUnknown {
		return info, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, info)
	}

	log.Printf("smbus: detected %s, %s family", info, c.family)

	switch {
	case info.VendorID == VendorIntel && c.family == FamilySkylakeX:
		err = c.acquireSkylakeX()
	case info.VendorID == VendorAMD || info.VendorID == VendorATI:
		err = c.acquireAMD()
	default:
		err = c.acquirePortMapped()
	}
	if err != nil {
		c.proto = nil
		return info, err
	}
	return info, nil
}

// Ready reports whether a supported controller was acquired.
func (c *Controller) Ready() bool {
	return c.proto != nil
}

// Platform returns the detected platform classification.
func (c *Controller) Platform() PlatformInfo { return c.platform }

// Family returns the detected controller family.
func (c *Controller) Family() Family { return c.family }

// SPDWriteDisabled reports the BIOS "SPD write disable" flag captured
// from Intel host configuration. Informational only.
func (c *Controller) SPDWriteDisabled() bool { return c.spdWriteDisabled }

// acquireSkylakeX retains the PCI handle of the CPU-integrated SMBus.
func (c *Controller) acquireSkylakeX() error {
	dev, err := c.backend.FindDeviceByID(VendorIntel, deviceSkylakeXSmbus)
	if err != nil {
		return fmt.Errorf("smbus: locate Skylake-X SMBus: %w", err)
	}
	c.proto = &skylakeXProtocol{backend: c.backend, cfg: &c.cfg, dev: dev}
	return nil
}

// acquirePortMapped reads the I/O port base from BAR4 of the SMBus PCI
// function (Intel ICH/PCH and Nvidia MCP).
func (c *Controller) acquirePortMapped() error {
	dev, err := c.backend.FindDeviceByClass(hwio.ClassSerial, hwio.SubclassSMBus)
	if err != nil {
		return fmt.Errorf("smbus: locate SMBus function: %w", err)
	}
	bar, err := c.backend.ReadConfigWord(dev, pciBar4Offset)
	if err != nil {
		return err
	}
	portBase := bar &^ 0x0001 // low bit flags an I/O-mapped BAR
	log.Printf("smbus: port base 0x%04X at %s", portBase, dev)

	if c.platform.VendorID == VendorNvidia {
		c.proto = &nvidiaProtocol{backend: c.backend, cfg: &c.cfg, portBase: portBase}
		return nil
	}

	if cfgByte, err := c.backend.ReadConfigByte(dev, intelHostConfigOffset); err == nil {
		c.spdWriteDisabled = cfgByte&intelSpdWriteDisable != 0
	}
	c.proto = &defaultProtocol{
		backend:  c.backend,
		cfg:      &c.cfg,
		portBase: portBase,
		vendor:   c.platform.VendorID,
	}
	return nil
}

// acquireAMD derives the SMBus port base from the PM indirect registers.
// Only FCH rev 0x49+ and Hudson-2 rev 0x41+ are supported.
func (c *Controller) acquireAMD() error {
	dev, err := c.backend.FindDeviceByClass(hwio.ClassSerial, hwio.SubclassSMBus)
	if err != nil {
		return fmt.Errorf("smbus: locate SMBus function: %w", err)
	}
	revision, err := c.backend.ReadConfigByte(dev, 0x08)
	if err != nil {
		return err
	}

	supported := (c.platform.DeviceID == deviceAmdFch && revision >= 0x49) ||
		(c.platform.DeviceID == deviceAmdHudson2 && revision >= 0x41)
	if !supported {
		return fmt.Errorf("%w: AMD SMBus revision 0x%02x", ErrUnsupportedPlatform, revision)
	}

	if err := c.backend.WritePortByte(amdPmIndexPort, amdPmSmbusEnLo); err != nil {
		return err
	}
	enLo, err := c.backend.ReadPortByte(amdPmDataPort)
	if err != nil {
		return err
	}
	if err := c.backend.WritePortByte(amdPmIndexPort, amdPmSmbusEnHi); err != nil {
		return err
	}
	enHi, err := c.backend.ReadPortByte(amdPmDataPort)
	if err != nil {
		return err
	}

	if enLo&0x01 == 0 {
		return fmt.Errorf("%w: AMD SMBus host not enabled", ErrUnsupportedPlatform)
	}
	log.Printf("smbus: AMD port base 0x%04X, revision 0x%02X", uint16(enHi)<<8, revision)
	c.proto = &defaultProtocol{
		backend:  c.backend,
		cfg:      &c.cfg,
		portBase: uint16(enHi) << 8,
		vendor:   VendorAMD,
	}
	return nil
}

// execute runs one transaction through the selected protocol strategy.
func (c *Controller) execute(t *Transaction) error {
	if c.proto == nil {
		return ErrNotReady
	}
	if !c.proto.supportsBus(t.Bus) {
		return fmt.Errorf("%w: bus %d", ErrInvalidBus, t.Bus)
	}
	c.proto.execute(t)
	switch t.Status {
	case StatusTimeout:
		return fmt.Errorf("%w: %02x:%02x+0x%02x", ErrTimeout, t.Bus, t.Address, t.Offset)
	case StatusError:
		return fmt.Errorf("%w: %02x:%02x+0x%02x", ErrTransaction, t.Bus, t.Address, t.Offset)
	case StatusAborted:
		return fmt.Errorf("%w: bus %d", ErrInvalidBus, t.Bus)
	}
	return nil
}

// ReadByte reads one byte at the given register offset of a slave.
func (c *Controller) ReadByte(bus, address uint8, offset uint8) (uint8, error) {
	t := Transaction{
		Bus:     bus,
		Address: address,
		Offset:  uint16(offset),
		Access:  AccessRead,
		Command: CmdByteData,
	}
	if err := c.execute(&t); err != nil {
		return 0, err
	}
	return t.Output, nil
}

// WriteByte writes one byte at the given register offset of a slave.
func (c *Controller) WriteByte(bus, address uint8, offset uint8, value uint8) error {
	t := Transaction{
		Bus:     bus,
		Address: address,
		Offset:  uint16(offset),
		Access:  AccessWrite,
		Command: CmdByteData,
		Input:   value,
	}
	return c.execute(&t)
}

// ProbeAddress issues a single-byte read and reports whether the slave
// acknowledged. Absent devices are an expected outcome, never an error.
func (c *Controller) ProbeAddress(address uint8) bool {
	if c.proto == nil {
		return false
	}
	t := Transaction{
		Bus:     c.bus,
		Address: address,
		Access:  AccessRead,
		Command: CmdByte,
	}
	if !c.proto.execute(&t) {
		return false
	}
	return t.Status == StatusSuccess || t.Status == StatusReady
}

// ScanAddresses probes the EEPROM address range on the active bus and
// returns the acknowledging addresses in increasing order.
func (c *Controller) ScanAddresses() []uint8 {
	return c.scanAddresses(false)
}

// scanAddresses probes 0x50..0x57. In minimal mode it stops at the
// first acknowledging address, which is enough for bus presence tests.
func (c *Controller) scanAddresses(minimal bool) []uint8 {
	var found []uint8
	for addr := EepromAddressMin; addr <= EepromAddressMax; addr++ {
		if !c.ProbeAddress(addr) {
			continue
		}
		found = append(found, addr)
		if minimal {
			break
		}
	}
	return found
}

// FindBuses reports which logical bus numbers have at least one SPD
// EEPROM present. The active bus selection is restored afterward.
func (c *Controller) FindBuses() []uint8 {
	if c.proto == nil {
		return nil
	}
	original := c.bus
	defer c.SetBusNumber(original)

	var buses []uint8
	for _, bus := range []uint8{0, 1} {
		if !c.proto.supportsBus(bus) {
			continue
		}
		c.SetBusNumber(bus)
		if len(c.scanAddresses(true)) > 0 {
			buses = append(buses, bus)
		}
	}
	return buses
}

// BusNumber returns the active logical bus number.
func (c *Controller) BusNumber() uint8 { return c.bus }

// SetBusNumber selects the active logical bus. The bus-change hook runs
// on every call: dependent cached state such as the SPD layer's page
// register must be invalidated even when the number is unchanged.
func (c *Controller) SetBusNumber(bus uint8) {
	c.bus = bus
	if c.OnBusChange != nil {
		c.OnBusChange(bus)
	}
}
