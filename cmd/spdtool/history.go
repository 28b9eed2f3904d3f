package main

import (
	"fmt"
	"strconv"

	"github.com/mscrnt/spdtool/pkg/inventory"
	"github.com/spf13/cobra"
)

var historyLimit int

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [scan-id]",
		Short: "Show recorded scans",
		Long: `List scans recorded with 'scan --save', or show the modules of one
scan when an ID is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of scans to list")

	return cmd
}

func runHistory(_ *cobra.Command, args []string) error {
	db, err := inventory.Open(getDBPath())
	if err != nil {
		return fmt.Errorf("failed to open inventory database: %w", err)
	}
	defer db.Close()

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid scan ID %q", args[0])
		}
		return showScan(db, id)
	}

	scans, err := db.ListScans(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list scans: %w", err)
	}
	if len(scans) == 0 {
		fmt.Println("No recorded scans")
		return nil
	}

	fmt.Printf("%-6s %-20s %-28s %s\n", "ID", "Time", "Chipset", "Family")
	for _, s := range scans {
		fmt.Printf("%-6d %-20s %-28s %s\n",
			s.ID, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Platform, s.Family)
	}
	return nil
}

func showScan(db *inventory.DB, id int64) error {
	modules, err := db.ListModules(id)
	if err != nil {
		return fmt.Errorf("failed to list modules: %w", err)
	}
	if len(modules) == 0 {
		fmt.Printf("No modules recorded for scan %d\n", id)
		return nil
	}

	for _, m := range modules {
		fmt.Printf("  bus %d addr 0x%02X: %s %s %s (s/n %s, %d bytes)\n",
			m.Bus, m.Address, m.Type, m.PartNumber, m.Manufacturer, m.Serial, m.SpdSize)
	}
	return nil
}
