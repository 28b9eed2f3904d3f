package main

import (
	"fmt"

	"github.com/mscrnt/spdtool/pkg/smbus"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"
)

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Detect the SMBus controller and show host information",
		Long: `Identify the chipset SMBus controller, classify it into a register
protocol family and report the host system summary.`,
		RunE: runDetect,
	}
}

func runDetect(_ *cobra.Command, _ []string) error {
	if hostInfo, err := host.Info(); err == nil {
		fmt.Printf("Host:       %s (%s %s, kernel %s)\n",
			hostInfo.Hostname, hostInfo.Platform, hostInfo.PlatformVersion, hostInfo.KernelVersion)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("Memory:     %.1f GB total, %.1f GB available\n",
			float64(vm.Total)/(1<<30), float64(vm.Available)/(1<<30))
	}

	ctrl, backend, err := openController()
	if err != nil {
		return err
	}
	defer backend.Close()

	platform := ctrl.Platform()
	fmt.Printf("Chipset:    %s\n", platform)
	fmt.Printf("Family:     %s\n", ctrl.Family())
	if platform.VendorID == smbus.VendorIntel {
		fmt.Printf("SPD write:  ")
		if ctrl.SPDWriteDisabled() {
			fmt.Println("disabled by firmware")
		} else {
			fmt.Println("enabled")
		}
	}

	buses := ctrl.FindBuses()
	if len(buses) == 0 {
		fmt.Println("Buses:      none with SPD devices")
		return nil
	}
	fmt.Printf("Buses:      %v\n", buses)
	return nil
}
