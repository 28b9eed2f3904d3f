package smbus

import (
	"bytes"
	"testing"
)

func TestReadSPDSinglePage(t *testing.T) {
	sim := newIntelSim(0x8C44)
	mem := sim.addEeprom(0, 0x50)
	mem[2] = 0x0B // DDR3, 256 byte image
	mem[0] = 0x92
	mem[255] = 0x5A

	ctrl := initController(t, sim.fakeBackend)
	data, err := ctrl.ReadSPD(0, 0x50)
	if err != nil {
		t.Fatalf("ReadSPD: %v", err)
	}
	if len(data) != 256 {
		t.Fatalf("image length = %d, want 256", len(data))
	}
	if !bytes.Equal(data, mem) {
		t.Error("image does not match EEPROM contents")
	}
}

func TestReadSPDPagedDDR4(t *testing.T) {
	sim := newIntelSim(0x8C44)
	mem := sim.addSpd(0, 0x50, 512)
	mem[2] = 0x0C // DDR4
	mem[0] = 0x23
	mem[255] = 0x11
	mem[256] = 0x44
	mem[511] = 0x99

	ctrl := initController(t, sim.fakeBackend)
	data, err := ctrl.ReadSPD(0, 0x50)
	if err != nil {
		t.Fatalf("ReadSPD: %v", err)
	}
	if len(data) != 512 {
		t.Fatalf("image length = %d, want 512", len(data))
	}
	if !bytes.Equal(data, mem) {
		t.Error("image does not match EEPROM contents")
	}
	if sim.page[0] != 0 {
		t.Errorf("page left at %d, want 0", sim.page[0])
	}
}

func TestReadSPDPagedDDR5(t *testing.T) {
	sim := newIntelSim(0x8C44)
	mem := sim.addSpd(0, 0x50, 1024)
	mem[2] = 0x12 // DDR5
	mem[127] = 0x31
	mem[128] = 0x32
	mem[1023] = 0x33

	ctrl := initController(t, sim.fakeBackend)
	data, err := ctrl.ReadSPD(0, 0x50)
	if err != nil {
		t.Fatalf("ReadSPD: %v", err)
	}
	if len(data) != 1024 {
		t.Fatalf("image length = %d, want 1024", len(data))
	}
	if !bytes.Equal(data, mem) {
		t.Error("image does not match EEPROM contents")
	}
	if sim.page[0] != 0 {
		t.Errorf("page left at %d, want 0", sim.page[0])
	}
}

func TestReadSPDAbsentDevice(t *testing.T) {
	sim := newIntelSim(0x8C44)
	ctrl := initController(t, sim.fakeBackend)

	if _, err := ctrl.ReadSPD(0, 0x53); err == nil {
		t.Fatal("expected error for absent device")
	}
}
