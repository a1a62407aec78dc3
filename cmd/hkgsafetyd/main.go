// Command hkgsafetyd runs the Hyundai/Kia safety gateway between the vehicle
// CAN buses and a compute module, and replays recorded frame traces against
// the safety hooks offline.
//
// Usage:
//
//	hkgsafetyd run --config /etc/hkgsafety/config.yaml
//	hkgsafetyd replay testdata/engage.yaml
//	hkgsafetyd version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hkgsafetyd",
	Short: "Hyundai/Kia CAN safety gateway",
	Long: `hkgsafetyd validates vehicle CAN traffic, gates the commands a compute
module sends to the steering and cruise actuators, and relays frames between
bus segments.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "hkgsafetyd", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml, then /etc/hkgsafety/config.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hkgsafetyd:", err)
		os.Exit(1)
	}
}
