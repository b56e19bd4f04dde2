package main

import (
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/procrastinator/procrastinator/internal/pidfile"
)

func newStatusCmd(pidFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(*pidFile)
		},
	}
}

func runStatus(pidFileOverride string) error {
	path := resolvePIDFile(pidFileOverride)

	pid, err := pidfile.Read(path)
	if err != nil {
		color.Yellow("not running (%s)", err)
		return nil
	}

	if !pidfile.Alive(pid) {
		color.Red("not running (stale pidfile %s, pid %d)", path, pid)
		return nil
	}

	since, err := startedAt(path)
	if err != nil {
		color.Green("running (pid %d)", pid)
		return nil
	}
	color.Green("running (pid %d, up %s)", pid, humanize.Time(since))
	return nil
}

// startedAt approximates the daemon's start time from the pidfile's
// modification time, since procrastinatord records no explicit start
// timestamp.
func startedAt(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
