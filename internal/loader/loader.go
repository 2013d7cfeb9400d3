// Package loader builds the per-invocation view of a project: its glue and
// a symbol index over its sources.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tomatool/stepindex/glue"
	"github.com/tomatool/stepindex/internal/project"
	"github.com/tomatool/stepindex/internal/symbols"
)

// ErrClosed is returned by Close on a loader that was already closed.
var ErrClosed = errors.New("loader already closed")

// Loader is owned by a single invocation and must be closed exactly once.
type Loader struct {
	Project *project.Project
	// Glue is the glue registered inside the project, filtered by its
	// configuration.
	Glue  []glue.Entry
	Index symbols.Index

	closeOnce sync.Once
	release   func()
}

// New returns a loader that calls release on Close.
func New(p *project.Project, entries []glue.Entry, index symbols.Index, release func()) *Loader {
	return &Loader{Project: p, Glue: entries, Index: index, release: release}
}

// Close releases the symbol index.
func (l *Loader) Close() error {
	err := ErrClosed
	l.closeOnce.Do(func() {
		if l.release != nil {
			l.release()
		}
		err = nil
	})
	return err
}

// Factory creates loaders.
type Factory struct {
	// LookPath finds the go toolchain. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
	// Registered lists the available glue. Defaults to glue.Registered.
	Registered func() []glue.Entry
	// MainModule returns the path of the module the running binary was
	// built from. Defaults to the binary's build info.
	MainModule func() string
}

// mainPackage is the runtime package name of glue declared in a command.
const mainPackage = "main"

func buildModule() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return info.Main.Path
}

// Create builds a loader for p.
func (f Factory) Create(ctx context.Context, p *project.Project) (*Loader, error) {
	if p == nil {
		return nil, errors.New("no project")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lookPath := f.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	gobin, err := lookPath("go")
	if err != nil {
		return nil, fmt.Errorf("finding go toolchain: %w", err)
	}

	registered := f.Registered
	if registered == nil {
		registered = glue.Registered
	}

	cfg := p.Config
	var prefixes []string
	opts := symbols.Options{Dir: p.Root, Tests: true}
	if cfg != nil {
		prefixes = cfg.Glue
		opts.Tests = cfg.Index.IncludeTests()
		opts.BuildFlags = cfg.Index.BuildFlags
		opts.Env = cfg.Index.EnvList()
	}

	mainModule := f.MainModule
	if mainModule == nil {
		mainModule = buildModule
	}

	entries := selectGlue(registered(), p.ModulePath, mainModule(), prefixes)
	index := symbols.NewPackagesIndex(opts)

	log.Debug().
		Str("module", p.ModulePath).
		Str("go", gobin).
		Int("glue", len(entries)).
		Bool("tests", opts.Tests).
		Msg("loader created")

	return New(p, entries, index, index.Close), nil
}

// selectGlue keeps the entries inside the module and, when prefixes is not
// empty, under one of them. Glue of package main carries no import path; it
// is kept when the binary was built from the module and no prefixes are set.
func selectGlue(entries []glue.Entry, modulePath, mainModule string, prefixes []string) []glue.Entry {
	var out []glue.Entry
	for _, e := range entries {
		if e.Package == mainPackage {
			if mainModule == modulePath && len(prefixes) == 0 {
				out = append(out, e)
			}
			continue
		}
		if !glue.InScope(e.Package, modulePath) {
			continue
		}
		if len(prefixes) > 0 && !anyScope(e.Package, prefixes) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func anyScope(pkg string, prefixes []string) bool {
	for _, p := range prefixes {
		if glue.InScope(pkg, p) {
			return true
		}
	}
	return false
}
