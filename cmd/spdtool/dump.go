package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mscrnt/spdtool/pkg/spd"
	"github.com/spf13/cobra"
)

var (
	dumpBus    uint8
	dumpJSON   bool
	dumpRaw    bool
	dumpOutput string
)

func dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <address>",
		Short: "Dump and decode a module's SPD contents",
		Long: `Read the full SPD EEPROM of a module and print it as a hex dump
together with the decoded description.

Examples:
  # Dump the module at 0x50
  spdtool dump 0x50

  # Decoded description as JSON
  spdtool dump 0x50 --json

  # Save the raw image to a file
  spdtool dump 0x50 --out module.spd`,
		Args: cobra.ExactArgs(1),
		RunE: runDump,
	}

	cmd.Flags().Uint8Var(&dumpBus, "bus", 0, "SMBus bus number")
	cmd.Flags().BoolVar(&dumpJSON, "json", false, "Print the decoded module as JSON")
	cmd.Flags().BoolVar(&dumpRaw, "raw", false, "Print only the hex dump, skip decoding")
	cmd.Flags().StringVarP(&dumpOutput, "out", "o", "", "Write the raw image to a file")

	return cmd
}

func runDump(_ *cobra.Command, args []string) error {
	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}

	ctrl, backend, err := openController()
	if err != nil {
		return err
	}
	defer backend.Close()

	data, err := readSpdImage(ctrl, dumpBus, address)
	if err != nil {
		return err
	}

	if dumpOutput != "" {
		if err := os.WriteFile(dumpOutput, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dumpOutput, err)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), dumpOutput)
	}

	if !dumpJSON {
		printHexDump(data)
	}
	if dumpRaw {
		return nil
	}

	if !spd.IsLikelyValid(data) {
		return fmt.Errorf("contents at 0x%02X do not look like SPD data", address)
	}
	module, err := spd.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode SPD: %w", err)
	}

	if dumpJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(module)
	}

	fmt.Println()
	printModule(module)
	return nil
}

func printHexDump(data []byte) {
	for base := 0; base < len(data); base += 16 {
		fmt.Printf("%04X:", base)
		for i := base; i < base+16 && i < len(data); i++ {
			fmt.Printf(" %02X", data[i])
		}
		fmt.Println()
	}
}

func printModule(m *spd.Module) {
	fmt.Printf("Type:          %s\n", m.Type)
	fmt.Printf("Capacity:      %.0f GB (%d rank(s), x%d)\n", m.CapacityGB, m.Ranks, m.DataWidth)
	fmt.Printf("Speed:         %d MT/s (PC-%d)\n", m.DataRateMTs, m.PCRate)
	fmt.Printf("Manufacturer:  %s\n", m.Manufacturer)
	fmt.Printf("Part number:   %s\n", m.PartNumber)
	fmt.Printf("Serial:        %s\n", m.Serial)
	if m.ManufactureDate != "" {
		fmt.Printf("Manufactured:  %s\n", m.ManufactureDate)
	}
	t := m.Timings
	fmt.Printf("Timings:       CL%d-%d-%d-%d\n", t.CL, t.RCD, t.RP, t.RAS)
}
