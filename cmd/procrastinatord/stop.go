package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/procrastinator/procrastinator/internal/pidfile"
)

func newStopCmd(pidFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Signal a running daemon to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(*pidFile)
		},
	}
}

func runStop(pidFileOverride string) error {
	path := resolvePIDFile(pidFileOverride)

	pid, err := pidfile.Read(path)
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if !pidfile.Alive(pid) {
		fmt.Printf("no running process at pid %d, removing stale pidfile\n", pid)
		return pidfile.Remove(path)
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("stop: signal pid %d: %w", pid, err)
	}
	fmt.Printf("sent SIGTERM to pid %d\n", pid)
	return nil
}
