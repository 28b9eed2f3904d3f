package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var readBus uint8

func readCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <address> <offset>",
		Short: "Read one byte from an SMBus slave",
		Long: `Read a single byte from a register offset of an SMBus slave.

Examples:
  # Read the device type byte of the module at 0x50
  spdtool read 0x50 2

  # Read from the second bus
  spdtool read 0x52 0 --bus 1`,
		Args: cobra.ExactArgs(2),
		RunE: runRead,
	}

	cmd.Flags().Uint8Var(&readBus, "bus", 0, "SMBus bus number")

	return cmd
}

func runRead(_ *cobra.Command, args []string) error {
	address, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	offset, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid offset %q", args[1])
	}

	ctrl, backend, err := openController()
	if err != nil {
		return err
	}
	defer backend.Close()

	value, err := ctrl.ReadByte(readBus, address, uint8(offset))
	if err != nil {
		return err
	}
	fmt.Printf("0x%02X\n", value)
	return nil
}
