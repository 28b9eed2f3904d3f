package smbus

import (
	"encoding/binary"
	"fmt"

	"github.com/mscrnt/spdtool/pkg/hwio"
)

// Fake PCI topology shared by the simulated controllers.
var (
	simHostBridge = hwio.DeviceHandle{Bus: 0, Device: 0, Function: 0}
	simISABridge  = hwio.DeviceHandle{Bus: 0, Device: 0x1F, Function: 0}
	simSmbusFn    = hwio.DeviceHandle{Bus: 0, Device: 0x1F, Function: 3}
	simSkxSmbusFn = hwio.DeviceHandle{Bus: 0, Device: 0x08, Function: 0}
)

type fakeDev struct {
	vendorID  uint16
	deviceID  uint16
	baseClass uint8
	subClass  uint8
	config    [256]byte
}

func newFakeDev(vendorID, deviceID uint16, baseClass, subClass uint8) *fakeDev {
	d := &fakeDev{vendorID: vendorID, deviceID: deviceID, baseClass: baseClass, subClass: subClass}
	binary.LittleEndian.PutUint16(d.config[0x00:], vendorID)
	binary.LittleEndian.PutUint16(d.config[0x02:], deviceID)
	return d
}

type fakeEntry struct {
	handle hwio.DeviceHandle
	dev    *fakeDev
}

// fakeBackend implements hwio.Backend over an in-memory PCI topology,
// with hooks for port I/O and for memory-mapped-in-config registers.
type fakeBackend struct {
	devs []fakeEntry

	onPortRead         func(port uint16) (uint8, error)
	onPortWrite        func(port uint16, value uint8) error
	onConfigReadDword  func(dev hwio.DeviceHandle, offset uint16) (uint32, bool)
	onConfigWriteDword func(dev hwio.DeviceHandle, offset uint16, value uint32) bool
}

func (b *fakeBackend) addDevice(handle hwio.DeviceHandle, dev *fakeDev) {
	b.devs = append(b.devs, fakeEntry{handle: handle, dev: dev})
}

func (b *fakeBackend) lookup(handle hwio.DeviceHandle) (*fakeDev, error) {
	for _, e := range b.devs {
		if e.handle == handle {
			return e.dev, nil
		}
	}
	return nil, fmt.Errorf("fake: no device at %s", handle)
}

func (b *fakeBackend) FindDeviceByID(vendorID, deviceID uint16) (hwio.DeviceHandle, error) {
	for _, e := range b.devs {
		if e.dev.vendorID == vendorID && e.dev.deviceID == deviceID {
			return e.handle, nil
		}
	}
	return hwio.DeviceHandle{}, hwio.ErrDeviceNotFound
}

func (b *fakeBackend) FindDeviceByClass(baseClass, subClass uint8) (hwio.DeviceHandle, error) {
	for _, e := range b.devs {
		if e.dev.baseClass == baseClass && e.dev.subClass == subClass {
			return e.handle, nil
		}
	}
	return hwio.DeviceHandle{}, hwio.ErrDeviceNotFound
}

func (b *fakeBackend) ReadConfigByte(dev hwio.DeviceHandle, offset uint16) (uint8, error) {
	d, err := b.lookup(dev)
	if err != nil {
		return 0, err
	}
	return d.config[offset], nil
}

func (b *fakeBackend) ReadConfigWord(dev hwio.DeviceHandle, offset uint16) (uint16, error) {
	d, err := b.lookup(dev)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(d.config[offset:]), nil
}

func (b *fakeBackend) ReadConfigDword(dev hwio.DeviceHandle, offset uint16) (uint32, error) {
	if b.onConfigReadDword != nil {
		if v, ok := b.onConfigReadDword(dev, offset); ok {
			return v, nil
		}
	}
	d, err := b.lookup(dev)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(d.config[offset:]), nil
}

func (b *fakeBackend) WriteConfigByte(dev hwio.DeviceHandle, offset uint16, value uint8) error {
	d, err := b.lookup(dev)
	if err != nil {
		return err
	}
	d.config[offset] = value
	return nil
}

func (b *fakeBackend) WriteConfigWord(dev hwio.DeviceHandle, offset uint16, value uint16) error {
	d, err := b.lookup(dev)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(d.config[offset:], value)
	return nil
}

func (b *fakeBackend) WriteConfigDword(dev hwio.DeviceHandle, offset uint16, value uint32) error {
	if b.onConfigWriteDword != nil && b.onConfigWriteDword(dev, offset, value) {
		return nil
	}
	d, err := b.lookup(dev)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(d.config[offset:], value)
	return nil
}

func (b *fakeBackend) ReadPortByte(port uint16) (uint8, error) {
	if b.onPortRead == nil {
		return 0, fmt.Errorf("fake: no port handler")
	}
	return b.onPortRead(port)
}

func (b *fakeBackend) WritePortByte(port uint16, value uint8) error {
	if b.onPortWrite == nil {
		return fmt.Errorf("fake: no port handler")
	}
	return b.onPortWrite(port, value)
}

func (b *fakeBackend) Close() error { return nil }

// simDefault models a port-mapped ICH/PCH or FCH SMBus host with up to
// two register blocks at the AMD stride, plus EEPROM slaves per bus.
type simDefault struct {
	*fakeBackend

	portBase uint16
	sts      [2]uint8
	cnt      [2]uint8
	cmd      [2]uint8
	addr     [2]uint8
	dat0     [2]uint8
	page     [2]uint8
	eeprom   [2]map[uint8][]byte

	stuckBusy bool
	forceErr  bool
	aborts    int

	// AMD PM indirect register plumbing.
	pmIndex uint8
	amdEnLo uint8
	amdEnHi uint8
}

func (s *simDefault) install() {
	s.eeprom[0] = map[uint8][]byte{}
	s.eeprom[1] = map[uint8][]byte{}
	s.onPortRead = s.portRead
	s.onPortWrite = s.portWrite
}

// addEeprom registers a 256-byte SPD EEPROM at the given bus/address.
func (s *simDefault) addEeprom(bus, address uint8) []byte {
	return s.addSpd(bus, address, 256)
}

// addSpd registers an SPD EEPROM of the given size. Contents past the
// first 256 bytes are reached through page selection.
func (s *simDefault) addSpd(bus, address uint8, size int) []byte {
	mem := make([]byte, size)
	s.eeprom[bus][address] = mem
	return mem
}

func (s *simDefault) block(port uint16) (int, uint16, bool) {
	if port < s.portBase {
		return 0, 0, false
	}
	off := port - s.portBase
	b := int(off / amdBusStride)
	if b > 1 {
		return 0, 0, false
	}
	return b, off % amdBusStride, true
}

func (s *simDefault) portRead(port uint16) (uint8, error) {
	if port == amdPmDataPort {
		switch s.pmIndex {
		case amdPmSmbusEnLo:
			return s.amdEnLo, nil
		case amdPmSmbusEnHi:
			return s.amdEnHi, nil
		}
		return 0, nil
	}
	b, reg, ok := s.block(port)
	if !ok {
		return 0, fmt.Errorf("fake: port read 0x%04x out of range", port)
	}
	switch reg {
	case smbHstSts:
		if s.stuckBusy {
			return stsHostBusy, nil
		}
		if s.forceErr {
			return stsDeviceErr, nil
		}
		return s.sts[b], nil
	case smbHstDat0:
		return s.dat0[b], nil
	default:
		return 0, nil
	}
}

func (s *simDefault) portWrite(port uint16, value uint8) error {
	if port == amdPmIndexPort {
		s.pmIndex = value
		return nil
	}
	b, reg, ok := s.block(port)
	if !ok {
		return fmt.Errorf("fake: port write 0x%04x out of range", port)
	}
	switch reg {
	case smbHstSts:
		s.sts[b] &^= value
	case smbHstAdd:
		s.addr[b] = value
	case smbHstCmd:
		s.cmd[b] = value
	case smbHstDat0:
		s.dat0[b] = value
	case smbHstCnt:
		s.cnt[b] = value
		if value&cntKill != 0 {
			s.aborts++
		}
		if value&cntStart != 0 {
			s.start(b)
		}
	}
	return nil
}

func (s *simDefault) start(b int) {
	if s.stuckBusy || s.forceErr {
		return
	}
	read := s.addr[b]&0x01 != 0
	target := s.addr[b] >> 1
	if !read && (target == spdPageAddr0 || target == spdPageAddr1) {
		// EE1004 page select, a dummy write to SPA0/SPA1.
		s.page[b] = target - spdPageAddr0
		s.sts[b] |= stsInterrupt
		return
	}
	mem, present := s.eeprom[b][target]
	if !present {
		s.sts[b] |= stsDeviceErr
		return
	}
	switch s.cnt[b] & 0x1C {
	case cntByte:
		if read {
			s.dat0[b] = mem[0]
		}
	case cntByteData, cntWordData:
		idx := int(s.cmd[b])
		switch {
		case len(mem) > 512:
			// SPD5118 hub: register MR11 selects the 128 byte page.
			if !read && s.cmd[b] == spd5HubPageReg {
				s.page[b] = s.dat0[b]
				s.sts[b] |= stsInterrupt
				return
			}
			idx = int(s.page[b])*spdPageSizeDDR5 + int(s.cmd[b])
		case len(mem) > 256:
			idx = int(s.page[b])*spdPageSizeDDR4 + int(s.cmd[b])
		}
		if idx >= len(mem) {
			s.sts[b] |= stsDeviceErr
			return
		}
		if read {
			s.dat0[b] = mem[idx]
		} else {
			mem[idx] = s.dat0[b]
		}
	}
	s.sts[b] |= stsInterrupt
}

// newIntelSim builds an Intel Default-family platform: host bridge, LPC
// bridge carrying the chipset ID and the SMBus function with BAR4.
func newIntelSim(chipsetID uint16) *simDefault {
	backend := &fakeBackend{}
	backend.addDevice(simHostBridge, newFakeDev(VendorIntel, 0x0C00, hwio.ClassBridge, 0x00))
	backend.addDevice(simISABridge, newFakeDev(VendorIntel, chipsetID, hwio.ClassBridge, hwio.SubclassISA))

	smb := newFakeDev(VendorIntel, 0x8C22, hwio.ClassSerial, hwio.SubclassSMBus)
	binary.LittleEndian.PutUint16(smb.config[pciBar4Offset:], 0x0400|0x0001)
	backend.addDevice(simSmbusFn, smb)

	s := &simDefault{fakeBackend: backend, portBase: 0x0400}
	s.install()
	return s
}

// newAMDSim builds an AMD FCH platform with the PM indirect port base.
func newAMDSim(revision, enLo, enHi uint8) *simDefault {
	backend := &fakeBackend{}
	backend.addDevice(simHostBridge, newFakeDev(VendorAMD, 0x1480, hwio.ClassBridge, 0x00))

	smb := newFakeDev(VendorAMD, deviceAmdFch, hwio.ClassSerial, hwio.SubclassSMBus)
	smb.config[0x08] = revision
	backend.addDevice(simSmbusFn, smb)

	s := &simDefault{
		fakeBackend: backend,
		portBase:    uint16(enHi) << 8,
		amdEnLo:     enLo,
		amdEnHi:     enHi,
	}
	s.install()
	return s
}

// simNvidia models the single-bus MCP SMBus host.
type simNvidia struct {
	*fakeBackend

	portBase uint16
	addr     uint8
	cmd      uint8
	data     uint8
	status   uint8
	eeprom   map[uint8][]byte
}

func newNvidiaSim(deviceID uint16) *simNvidia {
	backend := &fakeBackend{}
	backend.addDevice(simHostBridge, newFakeDev(VendorNvidia, 0x02F0, hwio.ClassBridge, 0x00))

	smb := newFakeDev(VendorNvidia, deviceID, hwio.ClassSerial, hwio.SubclassSMBus)
	binary.LittleEndian.PutUint16(smb.config[pciBar4Offset:], 0x4C00|0x0001)
	backend.addDevice(hwio.DeviceHandle{Bus: 0, Device: 1, Function: 1}, smb)

	s := &simNvidia{fakeBackend: backend, portBase: 0x4C00, eeprom: map[uint8][]byte{}}
	backend.onPortRead = s.portRead
	backend.onPortWrite = s.portWrite
	return s
}

func (s *simNvidia) addEeprom(address uint8) []byte {
	mem := make([]byte, 256)
	s.eeprom[address] = mem
	return mem
}

func (s *simNvidia) portRead(port uint16) (uint8, error) {
	switch port - s.portBase {
	case nvRegStatus:
		return s.status, nil
	case nvRegData:
		return s.data, nil
	default:
		return 0, nil
	}
}

func (s *simNvidia) portWrite(port uint16, value uint8) error {
	switch port - s.portBase {
	case nvRegAddress:
		s.addr = value
	case nvRegCommand:
		s.cmd = value
	case nvRegData:
		s.data = value
	case nvRegProtocol:
		s.start(value)
	}
	return nil
}

func (s *simNvidia) start(proto uint8) {
	mem, present := s.eeprom[s.addr>>1]
	if !present {
		s.status = nvStsError
		return
	}
	read := proto&nvProtoRead != 0
	switch proto &^ nvProtoRead {
	case nvProtoByte:
		if read {
			s.data = mem[0]
		}
	case nvProtoByteData, nvProtoWordData:
		if read {
			s.data = mem[s.cmd]
		} else {
			mem[s.cmd] = s.data
		}
	}
	s.status = nvStsDone
}

// simSkylakeX models the CPU-integrated SMBus reached through config
// space of the 0x2085 function, two logical buses.
type simSkylakeX struct {
	*fakeBackend

	input  [2]uint8
	output [2]uint8
	status [2]uint32
	eeprom [2]map[uint8][]byte

	stuckBusy bool
}

func newSkylakeXSim() *simSkylakeX {
	backend := &fakeBackend{}
	backend.addDevice(simHostBridge, newFakeDev(VendorIntel, 0x2020, hwio.ClassBridge, 0x00))
	backend.addDevice(simISABridge, newFakeDev(VendorIntel, deviceX299, hwio.ClassBridge, hwio.SubclassISA))
	backend.addDevice(simSkxSmbusFn, newFakeDev(VendorIntel, deviceSkylakeXSmbus, hwio.ClassSerial, hwio.SubclassSMBus))

	s := &simSkylakeX{fakeBackend: backend}
	s.eeprom[0] = map[uint8][]byte{}
	s.eeprom[1] = map[uint8][]byte{}
	backend.onConfigReadDword = s.configRead
	backend.onConfigWriteDword = s.configWrite
	return s
}

func (s *simSkylakeX) addEeprom(bus, address uint8) []byte {
	mem := make([]byte, 256)
	s.eeprom[bus][address] = mem
	return mem
}

func skxBusFor(offset, base uint16) (uint8, bool) {
	if offset == base {
		return 0, true
	}
	if offset == base+skxBusStride {
		return 1, true
	}
	return 0, false
}

func (s *simSkylakeX) configRead(dev hwio.DeviceHandle, offset uint16) (uint32, bool) {
	if dev != simSkxSmbusFn {
		return 0, false
	}
	if bus, ok := skxBusFor(offset, skxRegStatus); ok {
		if s.stuckBusy {
			return skxStsBusy, true
		}
		return s.status[bus], true
	}
	if bus, ok := skxBusFor(offset, skxRegOutput); ok {
		return uint32(s.output[bus]), true
	}
	return 0, false
}

func (s *simSkylakeX) configWrite(dev hwio.DeviceHandle, offset uint16, value uint32) bool {
	if dev != simSkxSmbusFn {
		return false
	}
	if bus, ok := skxBusFor(offset, skxRegInput); ok {
		s.input[bus] = uint8(value)
		return true
	}
	if bus, ok := skxBusFor(offset, skxRegCommand); ok {
		s.start(bus, value)
		return true
	}
	return false
}

func (s *simSkylakeX) start(bus uint8, command uint32) {
	if s.stuckBusy {
		return
	}
	offset := uint8(command)
	addrByte := uint8(command >> 8)
	read := addrByte&uint8(skxAddressRead) != 0
	address := addrByte & 0x7F

	mem, present := s.eeprom[bus][address]
	if !present {
		s.status[bus] = skxStsComplete | skxStsNack
		return
	}
	if read {
		s.output[bus] = mem[offset]
	} else {
		mem[offset] = s.input[bus]
	}
	s.status[bus] = skxStsComplete
}
