// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/invowk/contentpipe/internal/resolve"

	"github.com/spf13/cobra"
)

func newOrderCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Print the resolved load order",
		Long: `Print the resolved load order, one source per line.

Dependencies always come before their dependents. With --verbose the
version and location of each source are printed as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := app.open(ctx, flags)
			if err != nil {
				return fail(cmd, flags, ExitStructural, err)
			}
			sources, err := s.discover(ctx, cmd.ErrOrStderr())
			if err != nil {
				return fail(cmd, flags, ExitStructural, err)
			}
			ordered, err := resolve.Resolve(sources)
			if err != nil {
				return fail(cmd, flags, ExitStructural, explainStructural(err))
			}

			w := cmd.OutOrStdout()
			for _, src := range ordered {
				if flags.verbose {
					fmt.Fprintf(w, "%s %s %s\n", src.Name(), SubtitleStyle.Render(src.Meta.Version), src.Location)
					continue
				}
				fmt.Fprintln(w, src.Name())
			}
			return nil
		},
	}
}
