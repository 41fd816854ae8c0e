// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strconv"

	"github.com/invowk/contentpipe/internal/issue"

	"github.com/spf13/cobra"
)

func newExplainCommand() *cobra.Command {
	var style string

	cmd := &cobra.Command{
		Use:   "explain [issue]",
		Short: "Explain a structural error",
		Long: `Explain a structural error from the issue catalog.

Without an argument, every known issue is listed. Errors printed by the
other commands name the issue to look up, e.g.

  contentpipe explain missing-dependency`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: issue.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, iss := range issue.Values() {
					fmt.Fprintf(w, "%3d  %s\n", iss.Id(), CmdStyle.Render(iss.Name()))
				}
				return nil
			}

			iss, ok := lookupIssue(args[0])
			if !ok {
				cmd.SilenceUsage = true
				cmd.SilenceErrors = true
				fmt.Fprintf(cmd.ErrOrStderr(), "%s unknown issue %q; run 'contentpipe explain' for the list\n", ErrorStyle.Render("Error:"), args[0])
				return &ExitError{Code: ExitStructural}
			}

			if style == "" {
				style = "notty"
				if stdoutIsTerminal() {
					style = "dark"
				}
			}
			rendered, err := iss.Render(style)
			if err != nil {
				return fmt.Errorf("render %s: %w", iss.Name(), err)
			}
			fmt.Fprint(w, rendered)
			return nil
		},
	}
	cmd.Flags().StringVar(&style, "style", "", "glamour style: dark, light, notty or a style file (default depends on the terminal)")
	return cmd
}

// lookupIssue accepts an issue name or its numeric id.
func lookupIssue(arg string) (*issue.Issue, bool) {
	if iss, ok := issue.Lookup(arg); ok {
		return iss, true
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if iss := issue.Get(issue.Id(n)); iss != nil {
			return iss, true
		}
	}
	return nil, false
}
