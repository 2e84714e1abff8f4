package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the gateway's registration and runtime state",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := resolveService()
		if err != nil {
			fmt.Printf("Failed to read status: %v\n", err)
			os.Exit(1)
		}
		ctx := context.Background()
		desc := svc.Descriptor()
		st := svc.ReadRuntime(ctx)

		fmt.Println("Gateway Service Status")
		fmt.Println("======================")
		fmt.Printf("Backend:  %s\n", desc.Label)
		fmt.Printf("Loaded:   %s\n", svc.LoadStateText(ctx))
		fmt.Printf("Runtime:  %s\n", st)
		if st.State != "" {
			fmt.Printf("State:    %s\n", st.State)
		}
		if st.LastExitStatus != nil {
			fmt.Printf("LastExit: %d\n", *st.LastExitStatus)
		}
		if st.Detail != "" {
			fmt.Printf("Detail:   %s\n", st.Detail)
		}
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the installed gateway command",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := resolveService()
		if err != nil {
			fmt.Printf("Failed to read command: %v\n", err)
			os.Exit(1)
		}
		snap := svc.ReadCommand(context.Background())
		if snap == nil {
			fmt.Println("No gateway installed.")
			return
		}

		fmt.Printf("Command: %s\n", strings.Join(snap.ProgramArguments, " "))
		if snap.WorkingDirectory != "" {
			fmt.Printf("WorkingDirectory: %s\n", snap.WorkingDirectory)
		}
		keys := make([]string, 0, len(snap.Environment))
		for key := range snap.Environment {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("Environment: %s=%s\n", key, snap.Environment[key])
		}
		if snap.SourcePath != "" {
			fmt.Printf("Source: %s\n", snap.SourcePath)
		}
	},
}
