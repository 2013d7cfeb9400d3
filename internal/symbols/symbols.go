// Package symbols looks up Go types and their methods by qualified name.
package symbols

import (
	"context"
	"errors"
	"sync"

	"github.com/tomatool/stepindex/stepdef"
)

var (
	// ErrNotFound is returned when no type or package has the given name.
	ErrNotFound = errors.New("symbol not found")
	// ErrUnavailable is returned when the index cannot be consulted at all.
	ErrUnavailable = errors.New("symbol index unavailable")
)

// Method is a method of a Type, or a function when the Type is a package.
type Method struct {
	Name string
	// Handle is the name the toolchain uses, e.g. pkg.(*Steps).AddItem.
	Handle     string
	Resource   string
	Line       int
	Parameters []stepdef.Parameter
}

// Type is a named type, or a package standing in for the functions it
// declares.
type Type struct {
	// Name is the name it was looked up by: pkg/path.Type or pkg/path.
	Name        string
	Package     string
	PackageName string
	Resource    string
	// Methods are the declared methods in source order.
	Methods []Method
}

// Index finds types by fully qualified name.
type Index interface {
	FindType(ctx context.Context, name string) (*Type, error)
}

// Static is an Index over a fixed set of types.
type Static struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewStatic returns an index holding types.
func NewStatic(types ...*Type) *Static {
	s := &Static{types: make(map[string]*Type, len(types))}
	for _, t := range types {
		s.Add(t)
	}
	return s
}

// Add stores t under its name, replacing any earlier type of that name.
func (s *Static) Add(t *Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[t.Name] = t
}

func (s *Static) FindType(ctx context.Context, name string) (*Type, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[name]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}
