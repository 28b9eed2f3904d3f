package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/mscrnt/spdtool/internal/version"
	"github.com/spf13/cobra"
)

var (
	// Build variables set by ldflags
	buildVersion string
	buildCommit  string
	buildTime    string

	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spdtool",
		Short: "spdtool - SMBus SPD inspection utility",
		Long: `spdtool reads and decodes SPD EEPROMs on installed memory modules
by driving the chipset SMBus controller directly. Intel ICH/PCH, Intel
Skylake-X and Nvidia MCP controllers are supported.`,
		Version: version.GetVersion(buildVersion, buildCommit, buildTime),
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			log.SetFlags(0)
			if !verbose {
				log.SetOutput(io.Discard)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(writeCmd())
	rootCmd.AddCommand(dumpCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.GetDetailedVersion(buildVersion, buildCommit, buildTime))
		},
	}
}
