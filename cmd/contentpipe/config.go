// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/contentpipe/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `contentpipe config` command tree.
func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect contentpipe configuration",
		Long: `Inspect contentpipe configuration.

Values are layered: built-in defaults, then contentpipe.cue (from --config,
the current directory or the user config directory), then CONTENTPIPE_*
environment variables, which may also come from a .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath})
			if err != nil {
				return fail(cmd, flags, ExitStructural, err)
			}
			if len(flags.roots) > 0 {
				cfg.Roots = flags.roots
			}

			w := cmd.OutOrStdout()
			source := SubtitleStyle.Render("(using defaults)")
			if cfg.File != "" {
				source = cfg.File
			}
			fmt.Fprintf(w, "// %s: %s\n", "config file", source)
			fmt.Fprint(w, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the user configuration directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return fail(cmd, flags, ExitStructural, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	})

	return cfgCmd
}
