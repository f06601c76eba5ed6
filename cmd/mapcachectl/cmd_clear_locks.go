package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arx-os/mapcache/internal/config"
)

var clearLocksCmd = &cobra.Command{
	Use:   "clear-locks",
	Short: "Force-remove every outstanding metatile lock",
	Long: `clear-locks calls ClearAllLocks on the configured locker backend,
the same force-removal spec.md §5/§7 describes for a lock that outlived
its holder's process. Use after a crashed worker leaves stale locks
behind.

Examples:
  mapcachectl clear-locks --config /etc/mapcache.xml`,
	RunE: runClearLocks,
}

func runClearLocks(cmd *cobra.Command, args []string) error {
	data, err := readConfigFile(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return fmt.Errorf("mapcachectl: invalid configuration: %w", err)
	}
	if cfg.Locker == nil {
		return fmt.Errorf("mapcachectl: no locker configured (lock_dir unset)")
	}
	if err := cfg.Locker.ClearAllLocks(context.Background()); err != nil {
		return fmt.Errorf("mapcachectl: clear locks: %w", err)
	}
	fmt.Println("locks cleared")
	return nil
}
