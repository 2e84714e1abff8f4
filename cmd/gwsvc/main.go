package main

import (
	"fmt"
	"os"

	gwsvc "github.com/axondata/go-gwsvc"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gwsvc",
	Short: "Manage the gateway through the host's native service manager",
	Long: `gwsvc installs and controls a long-running gateway process using
whichever service manager the host provides: launchd on macOS, systemd
user units (with PM2 as fallback) on Linux, and Scheduled Tasks on
Windows.

The same commands work on every platform; gwsvc picks the backend.`,
}

var profileFlag string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "gateway profile (isolates parallel installs)")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveService loads the configuration, applies the --profile flag,
// and resolves the platform backend.
func resolveService() (*gwsvc.GatewayService, error) {
	cfg, err := gwsvc.LoadConfig()
	if err != nil {
		return nil, err
	}
	if profileFlag != "" {
		cfg.Profile = profileFlag
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return gwsvc.ResolveGatewayService(cfg)
}
