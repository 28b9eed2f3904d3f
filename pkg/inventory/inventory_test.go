package inventory

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "inventory.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestScanRoundTrip(t *testing.T) {
	db := openTestDB(t)

	scan, err := db.CreateScan("8086:8cc4 (Z97)", "Default")
	if err != nil {
		t.Fatalf("CreateScan: %v", err)
	}
	if scan.ID == 0 {
		t.Fatal("scan ID not assigned")
	}

	modules := []ModuleRecord{
		{ScanID: scan.ID, Bus: 0, Address: 0x50, SpdSize: 512, Type: "DDR4", PartNumber: "TEST-A", Serial: "00000001"},
		{ScanID: scan.ID, Bus: 0, Address: 0x52, SpdSize: 512, Type: "DDR4", PartNumber: "TEST-B", Serial: "00000002"},
	}
	for i := range modules {
		if err := db.AddModule(&modules[i]); err != nil {
			t.Fatalf("AddModule: %v", err)
		}
	}

	scans, err := db.ListScans(10)
	if err != nil {
		t.Fatalf("ListScans: %v", err)
	}
	if len(scans) != 1 || scans[0].ID != scan.ID {
		t.Fatalf("ListScans = %+v, want the created scan", scans)
	}

	got, err := db.ListModules(scan.ID)
	if err != nil {
		t.Fatalf("ListModules: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListModules returned %d rows, want 2", len(got))
	}
	if got[0].Address != 0x50 || got[1].Address != 0x52 {
		t.Errorf("modules out of order: %+v", got)
	}
	if got[0].PartNumber != "TEST-A" {
		t.Errorf("PartNumber = %s, want TEST-A", got[0].PartNumber)
	}
}

func TestListModulesEmptyScan(t *testing.T) {
	db := openTestDB(t)

	scan, err := db.CreateScan("10de:0368 (MCP55)", "Default")
	if err != nil {
		t.Fatalf("CreateScan: %v", err)
	}
	got, err := db.ListModules(scan.ID)
	if err != nil {
		t.Fatalf("ListModules: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListModules = %+v, want empty", got)
	}
}
