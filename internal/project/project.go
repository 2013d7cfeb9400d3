// Package project finds the Go module a file or directory belongs to.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/mod/modfile"

	"github.com/tomatool/stepindex/internal/config"
)

// Project is a Go module on disk.
type Project struct {
	// Root is the absolute directory holding go.mod.
	Root       string
	ModulePath string
	GoVersion  string
	Config     *config.Config
}

// GoModules finds projects by their go.mod.
type GoModules struct{}

// OwnerOf returns the module enclosing resource, a file or directory. It
// returns nil and no error when resource is not inside a module.
func (GoModules) OwnerOf(resource string) (*Project, error) {
	abs, err := filepath.Abs(resource)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", resource, err)
	}

	dir := abs
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", resource, err)
	}

	root, ok := findModuleRoot(dir)
	if !ok {
		log.Debug().Str("resource", resource).Msg("no go.mod found")
		return nil, nil
	}
	return Open(root)
}

// Open reads the module rooted at dir.
func Open(dir string) (*Project, error) {
	path := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading go.mod: %w", err)
	}

	mf, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing go.mod: %w", err)
	}
	if mf.Module == nil || mf.Module.Mod.Path == "" {
		return nil, fmt.Errorf("parsing go.mod: %s has no module directive", path)
	}

	cfg, err := config.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", config.FileName, err)
	}

	p := &Project{
		Root:       dir,
		ModulePath: mf.Module.Mod.Path,
		Config:     cfg,
	}
	if mf.Go != nil {
		p.GoVersion = mf.Go.Version
	}
	return p, nil
}

// findModuleRoot walks up from dir to the first directory holding go.mod.
func findModuleRoot(dir string) (string, bool) {
	for {
		if info, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !info.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
