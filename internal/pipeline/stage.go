// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/loaders"
)

// Default stage names, in run order.
const (
	StageCore        = "core"
	StageContent     = "content"
	StageShaders     = "shaders"
	StagePrograms    = "programs"
	StageDiagnostics = "diagnostics"
)

type (
	// Stage selects the entries it handles and names the loader for each.
	Stage interface {
		Name() string
		Select(entries []content.Entry) []content.Entry
		LoaderFor(ext string) (loaders.Loader, bool)
		OnStageStarted(ctx context.Context, run *StageRun) error
		OnStageCompleted(ctx context.Context, run *StageRun) error
	}

	// StageRun is the state of one stage within one load, shared with the
	// stage's hooks.
	StageRun struct {
		RunID    uuid.UUID
		Index    int
		Stage    string
		Entries  []content.Entry
		Loaded   []content.ID
		Failures []Failure
		Registry *content.Registry
		Logger   *slog.Logger
	}

	// Hook runs at a stage boundary.
	Hook func(ctx context.Context, run *StageRun) error

	// BaseStage is a Stage built from a predicate. Entries go to Loader when
	// it is set and to the loader registry otherwise.
	BaseStage struct {
		StageName string
		Match     func(content.Entry) bool
		Loaders   *loaders.Registry
		Loader    loaders.Loader
		Started   Hook
		Completed Hook
	}
)

// Name implements Stage.
func (s *BaseStage) Name() string { return s.StageName }

// Select implements Stage.
func (s *BaseStage) Select(entries []content.Entry) []content.Entry {
	var out []content.Entry
	for _, e := range entries {
		if s.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// LoaderFor implements Stage.
func (s *BaseStage) LoaderFor(ext string) (loaders.Loader, bool) {
	if s.Loader != nil {
		return s.Loader, true
	}
	if s.Loaders == nil {
		return nil, false
	}
	return s.Loaders.Lookup(ext)
}

// OnStageStarted implements Stage.
func (s *BaseStage) OnStageStarted(ctx context.Context, run *StageRun) error {
	if s.Started == nil {
		return nil
	}
	return s.Started(ctx, run)
}

// OnStageCompleted implements Stage.
func (s *BaseStage) OnStageCompleted(ctx context.Context, run *StageRun) error {
	if s.Completed == nil {
		return nil
	}
	return s.Completed(ctx, run)
}

// DefaultStages returns the five built-in stages. Their predicates are
// disjoint, so each entry is loaded by exactly one stage:
//
//	core         everything under core/
//	content      everything the other stages leave (textures, fonts, scripts)
//	shaders      shaders/ and .vert/.frag/.wgsl anywhere, minus .prog
//	programs     .prog
//	diagnostics  tests/, minus shaders and programs
func DefaultStages(reg *loaders.Registry) []Stage {
	shaderLoader, _ := reg.Lookup(".vert")
	return []Stage{
		&BaseStage{StageName: StageCore, Match: isCore, Loaders: reg},
		&BaseStage{StageName: StageContent, Match: isContent, Loaders: reg},
		&BaseStage{StageName: StageShaders, Match: isShader, Loader: shaderLoader, Loaders: reg},
		&BaseStage{StageName: StagePrograms, Match: isProgram, Loaders: reg},
		&BaseStage{StageName: StageDiagnostics, Match: isDiagnostic, Loaders: reg, Completed: logSummary},
	}
}

func isCore(e content.Entry) bool {
	return strings.HasPrefix(e.Path, "core/")
}

func isShader(e content.Entry) bool {
	if isCore(e) || isProgram(e) {
		return false
	}
	switch e.Ext() {
	case ".vert", ".frag", ".wgsl":
		return true
	}
	return strings.HasPrefix(e.Path, "shaders/")
}

func isProgram(e content.Entry) bool {
	return !isCore(e) && e.Ext() == ".prog"
}

func isDiagnostic(e content.Entry) bool {
	return strings.HasPrefix(e.Path, "tests/") && !isShader(e) && !isProgram(e)
}

func isContent(e content.Entry) bool {
	return !isCore(e) && !isShader(e) && !isProgram(e) && !isDiagnostic(e)
}

// logSummary reports what the registry holds once every stage has run.
func logSummary(_ context.Context, run *StageRun) error {
	counts := run.Registry.CountByKind()
	attrs := []any{"run", run.RunID.String(), "items", run.Registry.Len()}
	for _, k := range []content.Kind{content.KindTexture, content.KindShader, content.KindProgram, content.KindFont, content.KindScript} {
		attrs = append(attrs, k.String(), counts[k])
	}
	run.Logger.Info("content registry summary", attrs...)
	return nil
}

// stageFor returns the first stage selecting e.
func stageFor(stages []Stage, e content.Entry) (Stage, bool) {
	for _, s := range stages {
		if len(s.Select([]content.Entry{e})) == 1 {
			return s, true
		}
	}
	return nil, false
}
