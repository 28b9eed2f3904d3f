package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mscrnt/spdtool/pkg/hwio"
	"github.com/mscrnt/spdtool/pkg/smbus"
)

// getDBPath returns the path to the spdtool inventory database file
func getDBPath() string {
	// Check environment variable first
	if dbPath := os.Getenv("SPDTOOL_DB_PATH"); dbPath != "" {
		return dbPath
	}

	// Default to user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory
		return "spdtool.db"
	}

	// Create .spdtool directory if it doesn't exist
	toolDir := filepath.Join(homeDir, ".spdtool")
	if err := os.MkdirAll(toolDir, 0o755); err == nil {
		return filepath.Join(toolDir, "spdtool.db")
	}

	// Fallback to current directory
	return "spdtool.db"
}

// openController opens the hardware access backend and brings the SMBus
// controller up. The caller owns the returned backend and must Close it.
func openController() (*smbus.Controller, hwio.Backend, error) {
	backend, err := hwio.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open hardware access: %w", err)
	}

	ctrl := smbus.New(backend, nil)
	if _, err := ctrl.Initialize(); err != nil {
		platform := ctrl.Platform()
		backend.Close()
		return nil, nil, fmt.Errorf("failed to initialize SMBus controller (%s): %w", platform, err)
	}

	return ctrl, backend, nil
}

// parseAddress parses a 7-bit SMBus slave address, decimal or 0x-hex.
func parseAddress(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || v > 0x7F {
		return 0, fmt.Errorf("invalid slave address %q", s)
	}
	return uint8(v), nil
}

// readSpdImage reads the full SPD contents of a module over SMBus.
func readSpdImage(ctrl *smbus.Controller, bus, address uint8) ([]byte, error) {
	data, err := ctrl.ReadSPD(bus, address)
	if err != nil {
		return nil, fmt.Errorf("failed to read SPD at 0x%02X: %w", address, err)
	}
	return data, nil
}
