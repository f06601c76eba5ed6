package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arx-os/mapcache/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate the configured mapcache XML document",
	Long: `validate loads the file named by --config, resolves every
tileset's cache/source/grid/format references, and reports the first
error encountered (spec.md §6 post-parse validation).

Examples:
  mapcachectl validate --config /etc/mapcache.xml`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	data, err := readConfigFile(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return fmt.Errorf("mapcachectl: invalid configuration: %w", err)
	}

	fmt.Printf("configuration valid: %d grid(s), %d tileset(s)\n", len(cfg.Grids), len(cfg.Tilesets))
	for name, ts := range cfg.Tilesets {
		fmt.Printf("  tileset %-20s grid=%-20s metasize=%dx%d format=%s\n",
			name, ts.GridLink.Grid.Name, ts.MetaSizeX, ts.MetaSizeY, ts.Format)
	}
	return nil
}
