package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the installed command definition for changes",
	Long: `Watch follows the gateway's unit definition file and prints the
installed command whenever it changes. Useful for catching drift
between what was installed and what another tool rewrote.

Press Ctrl-C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		svc, err := resolveService()
		if err != nil {
			fmt.Printf("Failed to watch: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, cleanup, err := svc.WatchCommand(ctx)
		if err != nil {
			fmt.Printf("Failed to watch: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = cleanup() }()

		fmt.Println("Watching gateway definition (Ctrl-C to stop)...")
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if event.Err != nil {
					fmt.Printf("watch error: %v\n", event.Err)
					continue
				}
				if event.Snapshot == nil {
					fmt.Println("definition removed")
					continue
				}
				fmt.Printf("definition: %s\n", strings.Join(event.Snapshot.ProgramArguments, " "))
			case <-ctx.Done():
				return
			}
		}
	},
}
