package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "procrastinatord",
		Short: "Deferred-task execution daemon",
	}

	var pidFile string
	root.PersistentFlags().StringVar(&pidFile, "pid-file", "", "override PID_FILE")

	root.AddCommand(newStartCmd(&pidFile))
	root.AddCommand(newStopCmd(&pidFile))
	root.AddCommand(newStatusCmd(&pidFile))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
