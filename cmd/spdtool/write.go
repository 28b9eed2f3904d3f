package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mscrnt/spdtool/pkg/smbus"
	"github.com/spf13/cobra"
)

var (
	writeBus   uint8
	writeForce bool
)

func writeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write <address> <offset> <value>",
		Short: "Write one byte to an SMBus slave",
		Long: `Write a single byte to a register offset of an SMBus slave.

Writing to SPD EEPROM addresses (0x50-0x57) can corrupt module data and
requires --force. Some Intel firmware blocks SPD writes entirely; the
flag state is reported but the transaction is attempted either way.`,
		Args: cobra.ExactArgs(3),
		RunE: runWrite,
	}

	cmd.Flags().Uint8Var(&writeBus, "bus", 0, "SMBus bus number")
	cmd.Flags().BoolVar(&writeForce, "force", false, "Allow writes to SPD EEPROM addresses")

	return cmd
}

func runWrite(_ *cobra.Command, args []string) error {
	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	offset, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid offset %q", args[1])
	}
	value, err := strconv.ParseUint(args[2], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid value %q", args[2])
	}

	if address >= smbus.EepromAddressMin && address <= smbus.EepromAddressMax && !writeForce {
		return fmt.Errorf("refusing to write to SPD EEPROM address 0x%02X without --force", address)
	}

	ctrl, backend, err := openController()
	if err != nil {
		return err
	}
	defer backend.Close()

	if ctrl.SPDWriteDisabled() {
		fmt.Fprintln(os.Stderr, "Warning: firmware reports SPD writes disabled; the write may be dropped")
	}

	if err := ctrl.WriteByte(writeBus, address, uint8(offset), uint8(value)); err != nil {
		return err
	}
	fmt.Printf("wrote 0x%02X to %02X:%02X+0x%02X\n", value, writeBus, address, offset)
	return nil
}
