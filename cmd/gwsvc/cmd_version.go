package main

import (
	"fmt"

	gwsvc "github.com/axondata/go-gwsvc"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := gwsvc.GetVersion()
		fmt.Printf("gwsvc %s\n", info.Version)
		fmt.Print("backends:")
		for _, b := range info.Backends {
			fmt.Printf(" %s", b)
		}
		fmt.Println()
	},
}
