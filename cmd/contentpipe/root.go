// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/invowk/contentpipe/internal/issue"
	"github.com/invowk/contentpipe/internal/logging"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	verbose    bool
	roots      []string
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "contentpipe",
		Short: "Load, validate and hot-reload content sources",
		Long: TitleStyle.Render("contentpipe") + SubtitleStyle.Render(" - a staged content-asset pipeline") + `

contentpipe discovers content sources (directories, .zip or .kar archives
and s3:// bucket prefixes), orders them by the dependencies declared in
their meta.json manifests and loads textures, shaders, programs, fonts and
scripts through a sequence of loading stages.

` + SubtitleStyle.Render("Examples:") + `
  contentpipe order                 Print the resolved load order
  contentpipe load                  Load every source and print a summary
  contentpipe watch                 Load, then hot-reload on changes
  contentpipe pack content/base     Pack a directory source into base.kar
  contentpipe explain dependency-cycle`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is ./contentpipe.cue, then the user config directory)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringSliceVar(&flags.roots, "root", nil, "content root, overrides the configured roots (repeatable)")

	root.AddCommand(
		newLoadCommand(app, flags),
		newOrderCommand(app, flags),
		newValidateCommand(app, flags),
		newWatchCommand(app, flags),
		newPackCommand(flags),
		newConfigCommand(app, flags),
		newExplainCommand(),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	logs := logging.Default()
	logs.AddSink(logging.NewConsoleSink(os.Stderr))
	slog.SetDefault(slog.New(logging.NewHandler(logs)))

	app := NewApp(Dependencies{Logs: logs})
	err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	_ = logs.Close()

	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitStructural)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// fail renders err on stderr and returns a silent ExitError carrying code.
func fail(cmd *cobra.Command, flags *rootFlags, code int, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, flags.verbose))
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: code, Err: err}
}
