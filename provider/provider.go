// Package provider finds the godog step definitions of the Go module a
// file belongs to.
//
//	defs, err := provider.New().FindStepDefinitions(ctx, "path/to/module", nil)
//
// The module's glue must be registered with package glue and linked into
// the calling binary.
package provider

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tomatool/stepindex/internal/collector"
	"github.com/tomatool/stepindex/internal/loader"
	"github.com/tomatool/stepindex/internal/project"
	"github.com/tomatool/stepindex/internal/resolve"
	"github.com/tomatool/stepindex/internal/runner"
	"github.com/tomatool/stepindex/internal/tooling"
	"github.com/tomatool/stepindex/progress"
	"github.com/tomatool/stepindex/stepdef"
)

// Errors FindStepDefinitions fails with, for errors.Is.
var (
	ErrLoaderAcquisition = tooling.ErrLoaderAcquisition
	ErrRuntimeExecution  = tooling.ErrRuntimeExecution
	ErrIndexUnavailable  = tooling.ErrIndexUnavailable
)

type projectModel interface {
	OwnerOf(resource string) (*project.Project, error)
}

type loaderFactory interface {
	Create(ctx context.Context, p *project.Project) (*loader.Loader, error)
}

type dryRunner interface {
	Run(ctx context.Context, scope runner.Scope) (*collector.Registry, error)
}

// Provider finds step definitions.
type Provider struct {
	projects projectModel
	loaders  loaderFactory
	runner   dryRunner
}

// New returns a provider over go modules on disk.
func New() *Provider {
	return newProvider(project.GoModules{}, loader.Factory{}, runner.New(runner.Options{}))
}

// newProvider is the internal constructor that allows dependency injection for testing
func newProvider(projects projectModel, loaders loaderFactory, dryRun dryRunner) *Provider {
	return &Provider{projects: projects, loaders: loaders, runner: dryRun}
}

// FindStepDefinitions returns the step definitions of the module owning
// resource, a file or directory, in the order godog registered them.
//
// A resource outside any module yields an empty list. Definitions that
// cannot be linked to source come back unresolved rather than failing the
// call. When ctx is cancelled during resolution the definitions resolved
// so far are returned. sink may be nil.
func (p *Provider) FindStepDefinitions(ctx context.Context, resource string, sink progress.Sink) ([]stepdef.Definition, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "provider.FindStepDefinitions",
		trace.WithAttributes(attribute.String("resource", resource)),
	)
	defer span.End()

	start := time.Now()
	log.Debug().Str("resource", resource).Msg("finding step definitions")

	defs, status, err := p.find(ctx, resource, sink)
	duration := time.Since(start)
	recordFind(duration, status, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug().Err(err).Str("resource", resource).Dur("duration", duration).Msg("finding step definitions failed")
		return nil, err
	}

	resolved := 0
	for _, d := range defs {
		if d.Resolved() {
			resolved++
		}
	}
	definitionsTotal.WithLabelValues("true").Add(float64(resolved))
	definitionsTotal.WithLabelValues("false").Add(float64(len(defs) - resolved))

	span.SetAttributes(
		attribute.Int("definitions", len(defs)),
		attribute.Int("resolved", resolved),
	)
	log.Debug().
		Str("resource", resource).
		Int("definitions", len(defs)).
		Int("resolved", resolved).
		Dur("duration", duration).
		Msg("found step definitions")
	return defs, nil
}

func (p *Provider) find(ctx context.Context, resource string, sink progress.Sink) ([]stepdef.Definition, string, error) {
	proj, err := p.projects.OwnerOf(resource)
	if err != nil {
		return nil, "", tooling.New(tooling.KindLoaderAcquisition, "find project", err)
	}
	if proj == nil {
		log.Debug().Str("resource", resource).Msg("resource is not part of a go module")
		return []stepdef.Definition{}, "no_project", nil
	}

	l, err := p.loaders.Create(ctx, proj)
	if err != nil {
		return nil, "", tooling.New(tooling.KindLoaderAcquisition, "create loader", err)
	}
	defer func() {
		if err := l.Close(); err != nil {
			log.Warn().Err(err).Str("module", proj.ModulePath).Msg("failed to release loader")
		}
	}()

	scope := runner.Scope{Root: proj.Root, ModulePath: proj.ModulePath, Glue: l.Glue}
	if proj.Config != nil {
		scope.Concurrency = proj.Config.Concurrency
	}
	reg, err := p.runner.Run(ctx, scope)
	if err != nil {
		if tooling.KindOf(err) == tooling.KindUnknown {
			err = tooling.New(tooling.KindRuntimeExecution, "dry run", err)
		}
		return nil, "", err
	}

	defs, err := resolve.New(l.Index).Resolve(ctx, reg, sink)
	if err != nil {
		return nil, "", err
	}
	return defs, "success", nil
}
