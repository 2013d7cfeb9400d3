package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomatool/stepindex/glue"
	"github.com/tomatool/stepindex/internal/config"
	"github.com/tomatool/stepindex/internal/project"
	"github.com/tomatool/stepindex/internal/symbols"
)

func noop(glue.Registrar) {}

func entries(pkgs ...string) func() []glue.Entry {
	return func() []glue.Entry {
		out := make([]glue.Entry, 0, len(pkgs))
		for _, p := range pkgs {
			out = append(out, glue.Entry{Package: p, Name: p + ".InitializeScenario", Func: noop})
		}
		return out
	}
}

func foundGo(string) (string, error) { return "/usr/local/go/bin/go", nil }

func packagesOf(es []glue.Entry) []string {
	var out []string
	for _, e := range es {
		out = append(out, e.Package)
	}
	return out
}

func TestCreate(t *testing.T) {
	f := Factory{
		LookPath: foundGo,
		Registered: entries(
			"example.com/shop/steps",
			"example.com/shopping/steps",
			"example.com/shop/internal/bdd_test",
			"example.com/other",
		),
	}
	p := &project.Project{Root: "/src/shop", ModulePath: "example.com/shop", Config: config.Default()}

	l, err := f.Create(context.Background(), p)
	require.NoError(t, err)
	defer l.Close()

	assert.Same(t, p, l.Project)
	assert.Equal(t, []string{"example.com/shop/steps", "example.com/shop/internal/bdd_test"}, packagesOf(l.Glue))
	assert.IsType(t, &symbols.PackagesIndex{}, l.Index)
}

func TestCreateGlueFilter(t *testing.T) {
	f := Factory{
		LookPath:   foundGo,
		Registered: entries("example.com/shop/steps", "example.com/shop/internal/bdd", "example.com/shop/steps/admin"),
	}
	cfg := config.Default()
	cfg.Glue = []string{"example.com/shop/steps"}
	p := &project.Project{Root: "/src/shop", ModulePath: "example.com/shop", Config: cfg}

	l, err := f.Create(context.Background(), p)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, []string{"example.com/shop/steps", "example.com/shop/steps/admin"}, packagesOf(l.Glue))
}

func TestCreateMainPackageGlue(t *testing.T) {
	p := &project.Project{Root: "/src/shop", ModulePath: "example.com/shop", Config: config.Default()}

	tests := []struct {
		name       string
		mainModule string
		prefixes   []string
		want       []string
	}{
		{"built from the module", "example.com/shop", nil, []string{"main", "example.com/shop/steps"}},
		{"built elsewhere", "example.com/tools", nil, []string{"example.com/shop/steps"}},
		{"prefix filter set", "example.com/shop", []string{"example.com/shop/steps"}, []string{"example.com/shop/steps"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Factory{
				LookPath:   foundGo,
				Registered: entries("main", "example.com/shop/steps"),
				MainModule: func() string { return tt.mainModule },
			}
			cfg := *p.Config
			cfg.Glue = tt.prefixes
			proj := *p
			proj.Config = &cfg

			l, err := f.Create(context.Background(), &proj)
			require.NoError(t, err)
			defer l.Close()
			assert.Equal(t, tt.want, packagesOf(l.Glue))
		})
	}
}

func TestCreateWithoutConfig(t *testing.T) {
	f := Factory{LookPath: foundGo, Registered: entries("example.com/shop")}
	l, err := f.Create(context.Background(), &project.Project{Root: "/src/shop", ModulePath: "example.com/shop"})
	require.NoError(t, err)
	defer l.Close()
	assert.Len(t, l.Glue, 1)
}

func TestCreateFailures(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		factory Factory
		project *project.Project
	}{
		{
			name:    "no project",
			ctx:     context.Background(),
			factory: Factory{LookPath: foundGo},
		},
		{
			name: "go toolchain missing",
			ctx:  context.Background(),
			factory: Factory{LookPath: func(string) (string, error) {
				return "", errors.New("executable file not found in $PATH")
			}},
			project: &project.Project{ModulePath: "example.com/shop"},
		},
		{
			name:    "cancelled",
			ctx:     canceled,
			factory: Factory{LookPath: foundGo},
			project: &project.Project{ModulePath: "example.com/shop"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := tt.factory.Create(tt.ctx, tt.project)
			assert.Error(t, err)
			assert.Nil(t, l)
		})
	}
}

func TestCloseOnce(t *testing.T) {
	released := 0
	l := New(nil, nil, symbols.NewStatic(), func() { released++ })

	assert.NoError(t, l.Close())
	assert.ErrorIs(t, l.Close(), ErrClosed)
	assert.Equal(t, 1, released)
}
