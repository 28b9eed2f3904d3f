package main

import (
	"fmt"
	"os"

	"github.com/mscrnt/spdtool/pkg/inventory"
	"github.com/mscrnt/spdtool/pkg/smbus"
	"github.com/mscrnt/spdtool/pkg/spd"
	"github.com/spf13/cobra"
)

var scanSave bool

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan SMBus buses for memory modules",
		Long: `Probe every SMBus bus for SPD EEPROMs, decode the modules found and
optionally record the result in the inventory database.

Examples:
  # Scan and print modules
  spdtool scan

  # Scan and record the result
  spdtool scan --save`,
		RunE: runScan,
	}

	cmd.Flags().BoolVar(&scanSave, "save", false, "Record the scan in the inventory database")

	return cmd
}

func runScan(_ *cobra.Command, _ []string) error {
	ctrl, backend, err := openController()
	if err != nil {
		return err
	}
	defer backend.Close()

	var db *inventory.DB
	var scan *inventory.Scan
	if scanSave {
		db, err = inventory.Open(getDBPath())
		if err != nil {
			return fmt.Errorf("failed to open inventory database: %w", err)
		}
		defer db.Close()

		scan, err = db.CreateScan(ctrl.Platform().String(), ctrl.Family().String())
		if err != nil {
			return fmt.Errorf("failed to create scan record: %w", err)
		}
	}

	buses := ctrl.FindBuses()
	if len(buses) == 0 {
		fmt.Println("No SPD devices found")
		return nil
	}

	total := 0
	for _, bus := range buses {
		ctrl.SetBusNumber(bus)
		for _, address := range ctrl.ScanAddresses() {
			total++
			describeModule(ctrl, db, scan, bus, address)
		}
	}
	fmt.Printf("\n%d module(s) found on %d bus(es)\n", total, len(buses))

	if scan != nil {
		fmt.Printf("Saved as scan %d\n", scan.ID)
	}
	return nil
}

func describeModule(ctrl *smbus.Controller, db *inventory.DB, scan *inventory.Scan, bus, address uint8) {
	size, err := ctrl.GetMaxSpdSize(address)
	if err != nil {
		fmt.Printf("  bus %d addr 0x%02X: size probe failed: %v\n", bus, address, err)
		return
	}

	rec := inventory.ModuleRecord{Bus: bus, Address: address, SpdSize: size}

	data, err := ctrl.ReadSPD(bus, address)
	switch {
	case err != nil:
		fmt.Printf("  bus %d addr 0x%02X: %d bytes, read failed: %v\n", bus, address, size, err)
	case !spd.IsLikelyValid(data):
		fmt.Printf("  bus %d addr 0x%02X: %d bytes, contents not recognized\n", bus, address, size)
	default:
		module, derr := spd.Decode(data)
		if derr != nil {
			fmt.Printf("  bus %d addr 0x%02X: %d bytes, decode failed: %v\n", bus, address, size, derr)
			break
		}
		fmt.Printf("  bus %d addr 0x%02X: %s %s %.0fGB %s (s/n %s)\n",
			bus, address, module.Type, module.PartNumber, module.CapacityGB, module.Manufacturer, module.Serial)
		rec.Type = module.Type
		rec.PartNumber = module.PartNumber
		rec.Manufacturer = module.Manufacturer
		rec.Serial = module.Serial
	}

	if db != nil && scan != nil {
		rec.ScanID = scan.ID
		if err := db.AddModule(&rec); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save module record: %v\n", err)
		}
	}
}
