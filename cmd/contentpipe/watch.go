// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/hotreload"
	"github.com/invowk/contentpipe/internal/issue"
	"github.com/invowk/contentpipe/internal/pipeline"
	"github.com/invowk/contentpipe/internal/watch"
	"github.com/invowk/contentpipe/pkg/contentfs"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type watchFlags struct {
	interval time.Duration
	timeout  time.Duration
	noNotify bool
}

func newWatchCommand(app *App, flags *rootFlags) *cobra.Command {
	wf := &watchFlags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Load content, then hot-reload changed entries",
		Long: `Load every content source, then poll the sources for changed entries
and reload them in place until interrupted.

Polling compares content fingerprints at hot_reload.interval. When
hot_reload.watch is enabled, file system events on directory sources
trigger a poll right away instead of waiting for the next tick.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, app, flags, wf)
		},
	}
	cmd.Flags().DurationVar(&wf.interval, "interval", 0, "poll interval (default from hot_reload.interval)")
	cmd.Flags().DurationVar(&wf.timeout, "timeout", 0, "stop watching after this long (0 runs until interrupted)")
	cmd.Flags().BoolVar(&wf.noNotify, "no-notify", false, "poll only, without file system notifications")
	return cmd
}

func runWatch(cmd *cobra.Command, app *App, flags *rootFlags, wf *watchFlags) error {
	ctx := cmd.Context()
	if wf.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wf.timeout)
		defer cancel()
	}

	s, err := app.open(ctx, flags)
	if err != nil {
		return fail(cmd, flags, ExitStructural, err)
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
		// The watch context is done by now; release with a fresh one.
		if err := p.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("releasing content failed", "error", err)
		}
	}()

	rep, err := p.Load(ctx, sources)
	if err != nil {
		return fail(cmd, flags, ExitStructural, explainStructural(err))
	}
	printReport(cmd.OutOrStdout(), rep, p.Registry())

	status := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "watch",
	})
	if flags.verbose {
		status.SetLevel(log.DebugLevel)
	}

	interval := cmp.Or(wf.interval, s.cfg.HotReload.Interval)
	poller := hotreload.New(p,
		hotreload.WithInterval(interval),
		hotreload.WithOpener(s.opener),
		hotreload.WithLogger(s.logger),
		hotreload.OnReload(func(rep *pipeline.Report, err error) {
			reportReload(status, rep, err)
		}),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })

	if s.cfg.HotReload.Watch && !wf.noNotify {
		if dirs := directoryLocations(p.Sources()); len(dirs) > 0 {
			w, err := watch.New(watch.Config{
				Roots:  dirs,
				Logger: s.logger,
				OnChange: func(_ context.Context, changed []string) error {
					status.Debug("file system change", "paths", len(changed))
					poller.Trigger()
					return nil
				},
			})
			if err != nil {
				return fail(cmd, flags, ExitStructural, watchError(err))
			}
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	status.Info("watching for changes", "sources", len(sources), "interval", interval)
	if err := g.Wait(); err != nil {
		return fail(cmd, flags, ExitStructural, watchError(err))
	}
	status.Info("stopped")
	return nil
}

func reportReload(status *log.Logger, rep *pipeline.Report, err error) {
	if err != nil {
		status.Error("reload failed", "err", err)
		return
	}
	status.Info("reloaded",
		"changed", len(rep.Reloaded),
		"added", len(rep.Loaded),
		"removed", len(rep.Removed),
		"took", rep.Duration.Round(time.Millisecond),
	)
	for _, f := range rep.Failures {
		status.Warn("entry kept its previous content", "entry", fmt.Sprintf("%s:%s", f.Source, f.Path), "err", f.Err)
	}
}

// directoryLocations returns the locations of directory sources; archives
// and buckets are covered by polling alone.
func directoryLocations(sources []*content.Source) []string {
	var dirs []string
	for _, src := range sources {
		if src.Kind == contentfs.KindDirectory {
			dirs = append(dirs, src.Location)
		}
	}
	return dirs
}

func watchError(err error) error {
	return issue.NewErrorContext().
		WithOperation("watch content sources").
		WithSuggestion("Run with --no-notify to rely on polling only").
		WithIssue(issue.WatchFailedId).
		Wrap(err).
		BuildError()
}
