package symbols

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/tools/go/packages"

	"github.com/tomatool/stepindex/internal/funcname"
	"github.com/tomatool/stepindex/stepdef"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo

// Options configures a PackagesIndex.
type Options struct {
	// Dir is the directory go list runs in, normally the module root.
	Dir string
	// Tests includes _test.go files, so glue declared in tests resolves.
	Tests bool
	// BuildFlags are passed to go list, e.g. -tags=integration.
	BuildFlags []string
	// Env is appended to the process environment.
	Env []string
}

// PackagesIndex loads packages on demand with go/packages. Loaded packages
// are kept until Close.
type PackagesIndex struct {
	opts Options
	load func(*packages.Config, ...string) ([]*packages.Package, error)

	mu    sync.Mutex
	cache map[string]*loaded
}

type loaded struct {
	pkg *packages.Package
	err error
}

// NewPackagesIndex returns an index rooted at opts.Dir.
func NewPackagesIndex(opts Options) *PackagesIndex {
	return &PackagesIndex{
		opts:  opts,
		load:  packages.Load,
		cache: make(map[string]*loaded),
	}
}

// FindType looks name up as pkg/path.Type, then as a package path. A
// package resolves to its package-level functions.
func (x *PackagesIndex) FindType(ctx context.Context, name string) (*Type, error) {
	if pkgPath, typeName, ok := splitType(name); ok {
		pkg, err := x.pkg(ctx, pkgPath)
		switch {
		case err == nil:
			if t, ok := namedType(pkg, typeName); ok {
				t.Name = name
				return t, nil
			}
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	pkg, err := x.pkg(ctx, name)
	if err != nil {
		return nil, err
	}
	return packageFuncs(pkg), nil
}

// Close drops every loaded package.
func (x *PackagesIndex) Close() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.cache = make(map[string]*loaded)
}

func (x *PackagesIndex) pkg(ctx context.Context, path string) (*packages.Package, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if l, ok := x.cache[path]; ok {
		return l.pkg, l.err
	}

	pkg, err := x.loadPackage(ctx, path)
	if ctx.Err() != nil {
		// Not cached: a later lookup with a live context may succeed.
		return nil, ctx.Err()
	}
	x.cache[path] = &loaded{pkg: pkg, err: err}
	return pkg, err
}

func (x *PackagesIndex) loadPackage(ctx context.Context, path string) (*packages.Package, error) {
	cfg := &packages.Config{
		Mode:       loadMode,
		Context:    ctx,
		Dir:        x.opts.Dir,
		Tests:      x.opts.Tests,
		BuildFlags: x.opts.BuildFlags,
	}
	if len(x.opts.Env) > 0 {
		cfg.Env = append(os.Environ(), x.opts.Env...)
	}

	// External test packages are listed under the package they test.
	pattern := strings.TrimSuffix(path, "_test")

	log.Debug().Str("package", path).Str("dir", x.opts.Dir).Msg("loading package")
	pkgs, err := x.load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", ErrUnavailable, path, err)
	}

	pkg := pick(pkgs, path)
	if pkg == nil || pkg.Types == nil {
		return nil, fmt.Errorf("%w: package %s", ErrNotFound, path)
	}
	if len(pkg.Errors) > 0 {
		// Positions of what did type check are still usable.
		log.Debug().Str("package", path).Int("errors", len(pkg.Errors)).
			Str("first", pkg.Errors[0].Msg).Msg("package loaded with errors")
		if len(pkg.GoFiles) == 0 {
			return nil, fmt.Errorf("%w: package %s: %s", ErrNotFound, path, pkg.Errors[0].Msg)
		}
	}
	return pkg, nil
}

// pick returns the variant of path with the most files. With tests on, that
// is the one compiled with its _test.go files.
func pick(pkgs []*packages.Package, path string) *packages.Package {
	var best *packages.Package
	for _, p := range pkgs {
		if p.PkgPath != path {
			continue
		}
		if best == nil || len(p.GoFiles) > len(best.GoFiles) {
			best = p
		}
	}
	return best
}

// splitType splits pkg/path.Type. The dot must follow the last slash.
func splitType(name string) (pkgPath, typeName string, ok bool) {
	slash := strings.LastIndexByte(name, '/')
	dot := strings.LastIndexByte(name, '.')
	if dot <= slash || dot == 0 || dot == len(name)-1 {
		return "", "", false
	}
	return name[:dot], name[dot+1:], true
}

func namedType(pkg *packages.Package, name string) (*Type, bool) {
	tn, ok := pkg.Types.Scope().Lookup(name).(*types.TypeName)
	if !ok {
		return nil, false
	}
	named, ok := tn.Type().(*types.Named)
	if !ok {
		return nil, false
	}

	fns := make([]*types.Func, 0, named.NumMethods())
	for i := 0; i < named.NumMethods(); i++ {
		fns = append(fns, named.Method(i))
	}
	return &Type{
		Package:     pkg.PkgPath,
		PackageName: pkg.Name,
		Resource:    pkg.Fset.Position(tn.Pos()).Filename,
		Methods:     methods(pkg, name, fns),
	}, true
}

func packageFuncs(pkg *packages.Package) *Type {
	scope := pkg.Types.Scope()
	var fns []*types.Func
	for _, n := range scope.Names() {
		if fn, ok := scope.Lookup(n).(*types.Func); ok {
			fns = append(fns, fn)
		}
	}
	t := &Type{
		Name:        pkg.PkgPath,
		Package:     pkg.PkgPath,
		PackageName: pkg.Name,
		Methods:     methods(pkg, "", fns),
	}
	if len(pkg.GoFiles) > 0 {
		t.Resource = pkg.GoFiles[0]
	}
	return t
}

// methods describes fns in source order: by file as go list orders them,
// then by offset. Files are parsed concurrently, so token.Pos alone does
// not follow file order.
func methods(pkg *packages.Package, recv string, fns []*types.Func) []Method {
	rank := make(map[string]int, len(pkg.GoFiles))
	for i, f := range pkg.GoFiles {
		rank[f] = i
	}

	out := make([]Method, 0, len(fns))
	positions := make(map[string]token.Position, len(fns))
	for _, fn := range fns {
		sig := fn.Type().(*types.Signature)
		pointer := false
		if r := sig.Recv(); r != nil {
			_, pointer = r.Type().(*types.Pointer)
		}
		pos := pkg.Fset.Position(fn.Pos())
		positions[fn.Name()] = pos
		out = append(out, Method{
			Name:       fn.Name(),
			Handle:     funcname.Handle(pkg.PkgPath, recv, pointer, fn.Name()),
			Resource:   pos.Filename,
			Line:       pos.Line,
			Parameters: parameters(pkg.Types, sig),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := positions[out[i].Name], positions[out[j].Name]
		if ra, rb := rank[a.Filename], rank[b.Filename]; ra != rb {
			return ra < rb
		}
		return a.Offset < b.Offset
	})
	return out
}

func parameters(pkg *types.Package, sig *types.Signature) []stepdef.Parameter {
	params := sig.Params()
	if params.Len() == 0 {
		return nil
	}
	qualifier := func(p *types.Package) string {
		if p == pkg {
			return ""
		}
		return p.Name()
	}
	out := make([]stepdef.Parameter, 0, params.Len())
	for i := 0; i < params.Len(); i++ {
		v := params.At(i)
		typ := types.TypeString(v.Type(), qualifier)
		if sig.Variadic() && i == params.Len()-1 {
			typ = "..." + types.TypeString(v.Type().(*types.Slice).Elem(), qualifier)
		}
		out = append(out, stepdef.Parameter{Name: v.Name(), Type: typ})
	}
	return out
}
