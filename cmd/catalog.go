package main

import (
	"fmt"
	"text/tabwriter"

	"pressadmin/internal/themes"
	"pressadmin/pkg/plugin"

	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the plugins compiled into this binary",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tORDER\tDESCRIPTION")
		for _, info := range plugin.List() {
			fmt.Fprintf(w, "%s\t%d\t%s\n", info.Name, info.Order, info.Description)
		}
		return w.Flush()
	},
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List the themes installed in the themes directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		catalog := themes.NewCatalog(cfg.Themes.Dir, logger)
		if err := catalog.Load(); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVERSION\tAUTHOR\tSTYLES\tSCRIPTS")
		for _, d := range catalog.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", d.Name, d.Version, d.Author, len(d.Styles), len(d.Scripts))
		}
		return w.Flush()
	},
}
