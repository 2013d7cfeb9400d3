package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestOwnerOf(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/shop\n\ngo 1.22\n")
	writeFile(t, filepath.Join(root, "steps", "steps.go"), "package steps\n")

	tests := []struct {
		name     string
		resource string
	}{
		{"module root", root},
		{"go.mod itself", filepath.Join(root, "go.mod")},
		{"nested file", filepath.Join(root, "steps", "steps.go")},
		{"nested directory", filepath.Join(root, "steps")},
		{"missing file inside module", filepath.Join(root, "steps", "new.go")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := GoModules{}.OwnerOf(tt.resource)
			require.NoError(t, err)
			require.NotNil(t, p)

			assert.Equal(t, root, p.Root)
			assert.Equal(t, "example.com/shop", p.ModulePath)
			assert.Equal(t, "1.22", p.GoVersion)
			require.NotNil(t, p.Config)
			assert.True(t, p.Config.Index.IncludeTests())
		})
	}
}

func TestOwnerOfNearestModule(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/outer\n")
	writeFile(t, filepath.Join(root, "tools", "go.mod"), "module example.com/outer/tools\n")
	writeFile(t, filepath.Join(root, "tools", "gen", "main.go"), "package main\n")

	p, err := GoModules{}.OwnerOf(filepath.Join(root, "tools", "gen", "main.go"))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "example.com/outer/tools", p.ModulePath)
	assert.Empty(t, p.GoVersion)
}

func TestOwnerOfNoModule(t *testing.T) {
	dir := t.TempDir()
	if _, ok := findModuleRoot(dir); ok {
		t.Skip("temp dir is inside a Go module")
	}

	p, err := GoModules{}.OwnerOf(dir)
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestOwnerOfMalformed(t *testing.T) {
	tests := []struct {
		name  string
		gomod string
	}{
		{"syntax error", "module \"example.com/shop\n"},
		{"no module directive", "go 1.22\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, filepath.Join(root, "go.mod"), tt.gomod)

			p, err := GoModules{}.OwnerOf(root)
			assert.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestOpenWithConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/shop\n")
	writeFile(t, filepath.Join(root, ".stepindex.yml"), "glue:\n  - example.com/shop/steps\nconcurrency: 2\n")

	p, err := Open(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com/shop/steps"}, p.Config.Glue)
	assert.Equal(t, 2, p.Config.Concurrency)

	writeFile(t, filepath.Join(root, ".stepindex.yml"), "version: 3\n")
	_, err = Open(root)
	assert.Error(t, err)
}
