// Package glue is where projects register the functions that declare their
// godog step definitions.
//
// A glue function receives a Registrar instead of a *godog.ScenarioContext.
// The scenario context satisfies Registrar, so the same function serves the
// project's own godog suite and stepindex's dry run:
//
//	func init() {
//		glue.Register(InitializeScenario)
//	}
//
//	func InitializeScenario(ctx glue.Registrar) {
//		ctx.Step(`^there are (\d+) godogs$`, thereAreGodogs)
//	}
//
//	func TestFeatures(t *testing.T) {
//		suite := godog.TestSuite{ScenarioInitializer: glue.Scenario(InitializeScenario)}
//		...
//	}
package glue

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cucumber/godog"
	"github.com/tomatool/stepindex/internal/funcname"
)

// Registrar is the step registration surface of *godog.ScenarioContext.
type Registrar interface {
	Step(expr, stepFunc interface{})
	Given(expr, stepFunc interface{})
	When(expr, stepFunc interface{})
	Then(expr, stepFunc interface{})
}

// Func declares step definitions on a Registrar.
type Func func(Registrar)

// Entry is a registered glue function.
type Entry struct {
	// Package is the import path of the package declaring the function.
	Package string
	// Name is the function's qualified name.
	Name string
	Func Func
}

var (
	mu      sync.RWMutex
	entries []Entry
	seen    = make(map[string]bool)
)

// Register makes a glue function available to step discovery. The package
// declaring fn is its scope. Registering the same function twice is a no-op.
// It panics if fn is nil.
func Register(fn Func) {
	if fn == nil {
		panic("glue: Register called with nil func")
	}

	sym := funcname.Of(fn)
	e := Entry{Package: sym.Package, Name: sym.Qualified(), Func: fn}

	mu.Lock()
	defer mu.Unlock()

	if e.Name != "" && seen[e.Name] {
		return
	}
	seen[e.Name] = true
	entries = append(entries, e)
}

// Registered returns all registered glue in registration order.
func Registered() []Entry {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Within returns the glue whose package belongs to the module, in
// registration order.
func Within(modulePath string) []Entry {
	var out []Entry
	for _, e := range Registered() {
		if InScope(e.Package, modulePath) {
			out = append(out, e)
		}
	}
	return out
}

// InScope reports whether pkg is prefix or a package below it. External
// test packages (prefix_test) are in scope of their package.
func InScope(pkg, prefix string) bool {
	pkg = strings.TrimSuffix(pkg, "_test")
	return pkg == prefix || strings.HasPrefix(pkg, prefix+"/")
}

// Scenario adapts glue functions to a godog scenario initializer.
func Scenario(fns ...Func) func(*godog.ScenarioContext) {
	return func(sc *godog.ScenarioContext) {
		for _, fn := range fns {
			fn(sc)
		}
	}
}

// reset clears the registry. Tests only.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	entries = nil
	seen = make(map[string]bool)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s (%s)", e.Name, e.Package)
}
