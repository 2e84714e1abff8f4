package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	gwsvc "github.com/axondata/go-gwsvc"
	"github.com/spf13/cobra"
)

var (
	installWorkdir     string
	installEnv         []string
	installDescription string
)

var installCmd = &cobra.Command{
	Use:   "install -- <program> [args...]",
	Short: "Install the gateway as a service and start it",
	Long: `Install registers the gateway with the platform's service manager and
starts it. The first argument is the interpreter or binary, the rest
its arguments. Reinstalling replaces any existing registration.

Example:

  gwsvc install --workdir /opt/gateway -- node server.js --port 8080`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := resolveService()
		if err != nil {
			fmt.Printf("Failed to install: %v\n", err)
			os.Exit(1)
		}

		env := make(map[string]string, len(installEnv))
		for _, kv := range installEnv {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				fmt.Printf("Failed to install: --env %q is not KEY=VALUE\n", kv)
				os.Exit(1)
			}
			env[key] = value
		}
		if len(env) == 0 {
			env = nil
		}

		spec := gwsvc.InstallSpec{
			ProgramArguments: args,
			WorkingDirectory: installWorkdir,
			Environment:      env,
			Description:      installDescription,
		}
		if err := svc.Install(context.Background(), spec); err != nil {
			fmt.Printf("Failed to install: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Gateway service installed.")
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the gateway service",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := resolveService()
		if err != nil {
			fmt.Printf("Failed to uninstall: %v\n", err)
			os.Exit(1)
		}
		if err := svc.Uninstall(context.Background()); err != nil {
			fmt.Printf("Failed to uninstall: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Gateway service removed.")
	},
}

func init() {
	installCmd.Flags().StringVar(&installWorkdir, "workdir", "", "working directory for the gateway process")
	installCmd.Flags().StringArrayVar(&installEnv, "env", nil, "environment variable KEY=VALUE (repeatable)")
	installCmd.Flags().StringVar(&installDescription, "description", "", "service description")
}
