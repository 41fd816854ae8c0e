// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/invowk/contentpipe/internal/config"
	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/discovery"
	"github.com/invowk/contentpipe/internal/glctx"
	"github.com/invowk/contentpipe/internal/issue"
	"github.com/invowk/contentpipe/internal/loaders"
	"github.com/invowk/contentpipe/internal/logging"
	"github.com/invowk/contentpipe/internal/pipeline"
	"github.com/invowk/contentpipe/internal/resolve"
	"github.com/invowk/contentpipe/pkg/contentfs"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference.
	App struct {
		Config config.Provider
		Logs   *logging.Logger
		// Bucket builds the object store client for s3:// roots.
		Bucket func(contentfs.BucketConfig) (contentfs.BucketClient, error)
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Logs   *logging.Logger
		Bucket func(contentfs.BucketConfig) (contentfs.BucketClient, error)
	}

	// session is what a content command needs once configuration is loaded.
	session struct {
		cfg    *config.Config
		logger *slog.Logger
		opener *contentfs.Opener
	}
)

// NewApp builds an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{Config: deps.Config, Logs: deps.Logs, Bucket: deps.Bucket}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Logs == nil {
		app.Logs = logging.Default()
	}
	if app.Bucket == nil {
		app.Bucket = contentfs.NewBucketClient
	}
	return app
}

// open loads configuration, applies the persistent flags and prepares
// logging and the structure opener.
func (a *App) open(ctx context.Context, flags *rootFlags) (*session, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, err
	}
	if len(flags.roots) > 0 {
		cfg.Roots = flags.roots
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		level = slog.LevelDebug
	}
	a.Logs.SetLevel(level)
	if cfg.Log.File != "" {
		sink, err := logging.OpenFileSink(cfg.Log.File)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.Logs.AddSink(sink)
	}

	s := &session{
		cfg:    cfg,
		logger: slog.New(logging.NewHandler(a.Logs)),
		opener: &contentfs.Opener{},
	}
	if cfg.HasBucketRoots() {
		client, err := a.Bucket(contentfs.BucketConfig{
			Endpoint:  cfg.Bucket.Endpoint,
			AccessKey: cfg.Bucket.AccessKey,
			SecretKey: cfg.Bucket.SecretKey,
			Region:    cfg.Bucket.Region,
			UseSSL:    cfg.Bucket.UseSSL,
		})
		if err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("connect to bucket").
				WithResource(cfg.Bucket.Endpoint).
				WithSuggestion("Check bucket.endpoint and the CONTENTPIPE_BUCKET_* credentials").
				WithIssue(issue.BucketUnavailableId).
				Wrap(err).
				BuildError()
		}
		s.opener.Bucket = client
	}
	return s, nil
}

// discover runs source discovery and prints its diagnostics to w.
func (s *session) discover(ctx context.Context, w io.Writer) ([]*content.Source, error) {
	res, err := discovery.New(s.cfg.Roots,
		discovery.WithOpener(s.opener),
		discovery.WithLogger(s.logger),
		discovery.WithWorkers(s.cfg.Workers),
	).Discover(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "%s %s\n", WarningStyle.Render("!"), d.Message)
	}
	return res.Sources, nil
}

// newPipeline builds a pipeline from the session configuration.
func (s *session) newPipeline(gpu content.GPU) (*pipeline.Pipeline, error) {
	policy, err := s.cfg.Policy()
	if err != nil {
		return nil, err
	}
	reg := loaders.Defaults(loaders.WithMaxTextureSize(s.cfg.MaxTextureSize))
	return pipeline.New(
		pipeline.WithGPU(gpu),
		pipeline.WithLoaders(reg),
		pipeline.WithOpener(s.opener),
		pipeline.WithOverridePolicy(policy),
		pipeline.WithWorkers(s.cfg.Workers),
		pipeline.WithExclude(s.cfg.Exclude...),
		pipeline.WithLogger(s.logger),
	), nil
}

// startGPU starts the context thread on the headless device. The returned
// stop function must be called once the pipeline is closed.
func (s *session) startGPU(ctx context.Context) (*glctx.Thread, func(), error) {
	th := glctx.New(glctx.NewHeadless(), glctx.WithLogger(s.logger))
	if err := th.Start(ctx); err != nil {
		return nil, nil, issue.NewErrorContext().
			WithOperation("start gpu context").
			WithIssue(issue.GPUInitFailedId).
			Wrap(err).
			BuildError()
	}
	return th, func() {
		if err := th.Stop(); err != nil {
			s.logger.Warn("gpu context stopped with error", "error", err)
		}
	}, nil
}

// explainStructural links resolver and pipeline errors to the issue catalog.
// Errors that already carry an issue are returned unchanged.
func explainStructural(err error) error {
	if _, ok := issue.IssueOf(err); ok {
		return err
	}

	var (
		missing *resolve.MissingDependencyError
		cycle   *resolve.CycleError
		dup     *resolve.DuplicateSourceError
		srcErr  *pipeline.SourceError
	)
	ec := issue.NewErrorContext().WithOperation("resolve load order")
	switch {
	case errors.As(err, &missing):
		ec.WithResource(missing.Source).
			WithSuggestion(fmt.Sprintf("Add a source named %q to one of the roots", missing.Dependency)).
			WithSuggestion(fmt.Sprintf("Or remove %q from the dependencies of %q", missing.Dependency, missing.Source)).
			WithIssue(issue.MissingDependencyId)
	case errors.As(err, &cycle):
		ec.WithSuggestion("Remove one dependency on the cycle; overrides only need to depend on what they replace").
			WithIssue(issue.DependencyCycleId)
	case errors.As(err, &dup):
		ec.WithResource(dup.Name).
			WithSuggestion("Give every source a unique name in its manifest").
			WithIssue(issue.DuplicateSourceId)
	case errors.As(err, &srcErr):
		ec.WithOperation("open content source").
			WithResource(srcErr.Location).
			WithSuggestion("Check that the source still exists and is readable").
			WithIssue(issue.SourceNotFoundId)
	default:
		return err
	}
	return ec.Wrap(err).BuildError()
}

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
