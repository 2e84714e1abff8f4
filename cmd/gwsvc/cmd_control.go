package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the gateway",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := resolveService()
		if err != nil {
			fmt.Printf("Failed to stop: %v\n", err)
			os.Exit(1)
		}
		if err := svc.Stop(context.Background()); err != nil {
			fmt.Printf("Failed to stop: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Gateway stopped.")
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the gateway",
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := resolveService()
		if err != nil {
			fmt.Printf("Failed to restart: %v\n", err)
			os.Exit(1)
		}
		if err := svc.Restart(context.Background()); err != nil {
			fmt.Printf("Failed to restart: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Gateway restarted.")
	},
}
