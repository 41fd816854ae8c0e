// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/pipeline"

	"github.com/spf13/cobra"
)

func newLoadCommand(app *App, flags *rootFlags) *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load every content source and print a summary",
		Long: `Load every content source headless and print a summary.

Sources are discovered below the configured roots, ordered by their
dependencies and loaded stage by stage. GPU-backed items are initialized
on a headless device, so shaders are compiled and programs linked without
a window.

Exit codes: 1 when nothing could be loaded (invalid configuration or
manifests, missing dependencies, cycles), 2 when some entries failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, app, flags, policy)
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "override policy for this run (last_wins or first_wins)")
	return cmd
}

func runLoad(cmd *cobra.Command, app *App, flags *rootFlags, policy string) error {
	ctx := cmd.Context()
	stdout := cmd.OutOrStdout()

	s, err := app.open(ctx, flags)
	if err != nil {
		return fail(cmd, flags, ExitStructural, err)
	}
	if policy != "" {
		s.cfg.OverridePolicy = policy
	}

	sources, err := s.discover(ctx, cmd.ErrOrStderr())
	if err != nil {
		return fail(cmd, flags, ExitStructural, err)
	}

	gpu, stop, err := s.startGPU(ctx)
	if err != nil {
		return fail(cmd, flags, ExitStructural, err)
	}
	defer stop()

	p, err := s.newPipeline(gpu)
	if err != nil {
		return fail(cmd, flags, ExitStructural, err)
	}
	defer func() {
		if err := p.Close(ctx); err != nil {
			s.logger.Warn("releasing content failed", "error", err)
		}
	}()

	rep, err := p.Load(ctx, sources)
	if err != nil {
		return fail(cmd, flags, ExitStructural, explainStructural(err))
	}

	printReport(stdout, rep, p.Registry())
	if !rep.OK() {
		cmd.SilenceErrors = true
		return &ExitError{Code: ExitEntriesFailed, Err: fmt.Errorf("%d entries failed", len(rep.Failures))}
	}
	return nil
}

func printReport(w io.Writer, rep *pipeline.Report, reg *content.Registry) {
	fmt.Fprintf(w, "%s %s\n\n", TitleStyle.Render("Load order:"), strings.Join(rep.Order, " -> "))

	fmt.Fprintln(w, tableHeaderStyle.Render(fmt.Sprintf("%-12s %8s %8s %8s", "STAGE", "SELECTED", "LOADED", "FAILED")))
	for _, st := range rep.Stages {
		fmt.Fprintf(w, "%-12s %8d %8d %8d\n", st.Name, st.Selected, st.Loaded, st.Failed)
	}
	fmt.Fprintln(w)

	if reg != nil {
		counts := reg.CountByKind()
		kinds := slices.Sorted(maps.Keys(counts))
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%d %s", counts[k], k))
		}
		if len(parts) > 0 {
			fmt.Fprintf(w, "%s %s\n", SubtitleStyle.Render("Items:"), strings.Join(parts, ", "))
		}
	}

	for _, f := range rep.Failures {
		fmt.Fprintf(w, "%s [%s] %s\n", ErrorStyle.Render("✗"), f.Stage, f.Error())
	}

	summary := fmt.Sprintf("%d items loaded from %d sources in %s", len(rep.Loaded), len(rep.Order), rep.Duration.Round(time.Millisecond))
	if rep.OK() {
		fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("✓"), summary)
		return
	}
	fmt.Fprintf(w, "%s %s, %d failed\n", WarningStyle.Render("!"), summary, len(rep.Failures))
}
