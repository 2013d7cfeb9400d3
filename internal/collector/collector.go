// Package collector accumulates the step definitions a godog run registers.
package collector

import (
	"strings"
	"sync"

	"github.com/tomatool/stepindex/internal/funcname"
)

// Declaration is one step definition as godog registered it.
type Declaration struct {
	// DeclaringType is the fully qualified type, or package for package
	// functions, that declared the step. Empty for closures.
	DeclaringType string
	Pattern       string
	// Location is pkg.Type.method(params), as reported by the recorder.
	// It is a hint, not a contract.
	Location string
	Keyword  string
}

// Event reports a registered step definition.
type Event struct {
	Pattern  string
	Location string
	Keyword  string
}

// Sink receives registration events.
type Sink interface {
	OnStepRegistered(Event)
}

// Registry groups declarations by declaring type. Groups keep the order
// they were first seen in; declarations keep registration order.
type Registry struct {
	types  []string
	groups map[string][]Declaration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string][]Declaration)}
}

// Add appends a declaration to its group.
func (r *Registry) Add(d Declaration) {
	if _, ok := r.groups[d.DeclaringType]; !ok {
		r.types = append(r.types, d.DeclaringType)
	}
	r.groups[d.DeclaringType] = append(r.groups[d.DeclaringType], d)
}

// Types returns the declaring types in first-seen order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.types))
	copy(out, r.types)
	return out
}

// Group returns the declarations of a declaring type.
func (r *Registry) Group(name string) []Declaration {
	return r.groups[name]
}

// Len returns the number of declarations across all groups.
func (r *Registry) Len() int {
	n := 0
	for _, g := range r.groups {
		n += len(g)
	}
	return n
}

// Declarations returns all declarations, group by group.
func (r *Registry) Declarations() []Declaration {
	out := make([]Declaration, 0, r.Len())
	for _, name := range r.types {
		out = append(out, r.groups[name]...)
	}
	return out
}

// Collector is a Sink that builds a Registry. It is safe for concurrent
// use since godog may initialize scenarios on several goroutines.
type Collector struct {
	mu       sync.Mutex
	registry *Registry
}

// New returns an empty collector.
func New() *Collector {
	return &Collector{registry: NewRegistry()}
}

// OnStepRegistered records a registration under its declaring type.
func (c *Collector) OnStepRegistered(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry.Add(Declaration{
		DeclaringType: DeclaringType(ev.Location),
		Pattern:       ev.Pattern,
		Location:      ev.Location,
		Keyword:       ev.Keyword,
	})
}

// Drain returns everything collected so far and starts over.
func (c *Collector) Drain() *Registry {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.registry
	c.registry = NewRegistry()
	return r
}

// DeclaringType extracts the declaring type from location text: what
// precedes the final .name( segment. Package functions yield their package,
// closures and unparseable text yield "".
func DeclaringType(location string) string {
	paren := strings.IndexByte(location, '(')
	if paren < 0 {
		return ""
	}
	head := location[:paren]

	slash := strings.LastIndexByte(head, '/')
	dot := strings.LastIndexByte(head, '.')
	if dot <= slash || dot == len(head)-1 {
		return ""
	}

	if funcname.Anonymous(head[dot+1:]) {
		return ""
	}
	return head[:dot]
}
