// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/contentpipe/internal/resolve"

	"github.com/spf13/cobra"
)

func newValidateCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate source manifests and dependencies",
		Long: `Validate every source manifest below the configured roots and check
that the declared dependencies resolve to an acyclic load order.

No entries are loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			s, err := app.open(ctx, flags)
			if err != nil {
				return fail(cmd, flags, ExitStructural, err)
			}
			sources, err := s.discover(ctx, cmd.ErrOrStderr())
			if err != nil {
				return fail(cmd, flags, ExitStructural, err)
			}
			for _, src := range sources {
				fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(src.Meta.String()), SubtitleStyle.Render("("+src.Kind.String()+")"))
			}

			if _, err := resolve.Resolve(sources); err != nil {
				return fail(cmd, flags, ExitStructural, explainStructural(err))
			}
			fmt.Fprintf(w, "%s %d sources valid\n", SuccessStyle.Render("✓"), len(sources))
			return nil
		},
	}
}
