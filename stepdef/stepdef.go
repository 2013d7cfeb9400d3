// Package stepdef holds the step definition records stepindex produces.
package stepdef

import "regexp"

const (
	// NoLabel is the label of definitions that carry none.
	NoLabel = ""

	// UnknownLine is the line of definitions not linked to source.
	UnknownLine = -1
)

// Parameter describes one parameter of a step method.
type Parameter struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
}

// Definition is a step definition discovered in a project.
//
// A resolved definition points at the Go method or function that
// implements the step. An unresolved one carries only the location text
// the runtime reported, in both ID and Method.
type Definition struct {
	// ID uniquely identifies the definition: the symbol handle when
	// resolved, the raw location text otherwise.
	ID         string      `json:"id"`
	Label      string      `json:"label,omitempty"`
	Keyword    string      `json:"keyword,omitempty"`
	Expression Expression  `json:"expression"`
	Resource   string      `json:"resource,omitempty"`
	Line       int         `json:"line"`
	Method     string      `json:"method"`
	Package    string      `json:"package"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Unresolved builds the record for a declaration that could not be
// linked to a source symbol.
func Unresolved(location, pattern, keyword string) Definition {
	return Definition{
		ID:         location,
		Label:      NoLabel,
		Keyword:    keyword,
		Expression: NewExpression(pattern),
		Line:       UnknownLine,
		Method:     location,
	}
}

// Resolved reports whether the definition was matched to a declared
// method. A matched method may still lack a file, when the index that
// supplied it holds none.
func (d Definition) Resolved() bool {
	return d.ID != d.Method || d.Package != ""
}

// Expression is the pattern a step definition matches step text with.
// godog patterns are regular expressions.
type Expression struct {
	Text string `json:"text"`
}

// NewExpression wraps a pattern.
func NewExpression(text string) Expression {
	return Expression{Text: text}
}

// Regexp compiles the pattern.
func (e Expression) Regexp() (*regexp.Regexp, error) {
	return regexp.Compile(e.Text)
}

// Match reports whether step matches the expression and returns the
// captured arguments.
func (e Expression) Match(step string) ([]string, bool) {
	re, err := e.Regexp()
	if err != nil {
		return nil, false
	}
	m := re.FindStringSubmatch(step)
	if m == nil {
		return nil, false
	}
	return m[1:], true
}

func (e Expression) String() string {
	return e.Text
}

// Matching returns the definitions whose expression matches step text,
// in order. keyword is the Given, When or Then a step resolved to; an
// empty keyword matches every definition, as does a definition declared
// with Step.
func Matching(defs []Definition, text, keyword string) []Definition {
	var out []Definition
	for _, d := range defs {
		if d.Keyword != "" && keyword != "" && d.Keyword != keyword {
			continue
		}
		if _, ok := d.Expression.Match(text); ok {
			out = append(out, d)
		}
	}
	return out
}
