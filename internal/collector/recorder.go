package collector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tomatool/stepindex/glue"
	"github.com/tomatool/stepindex/internal/funcname"
)

// Attach returns a Registrar that hands every registration to target and
// then reports it to sink. target sees the registration first so godog's
// own validation panics before anything is recorded.
func Attach(target glue.Registrar, sink Sink) glue.Registrar {
	return recorder{target: target, sink: sink}
}

type recorder struct {
	target glue.Registrar
	sink   Sink
}

func (r recorder) Step(expr, stepFunc interface{}) {
	r.target.Step(expr, stepFunc)
	r.record("", expr, stepFunc)
}

func (r recorder) Given(expr, stepFunc interface{}) {
	r.target.Given(expr, stepFunc)
	r.record("Given", expr, stepFunc)
}

func (r recorder) When(expr, stepFunc interface{}) {
	r.target.When(expr, stepFunc)
	r.record("When", expr, stepFunc)
}

func (r recorder) Then(expr, stepFunc interface{}) {
	r.target.Then(expr, stepFunc)
	r.record("Then", expr, stepFunc)
}

func (r recorder) record(keyword string, expr, stepFunc interface{}) {
	r.sink.OnStepRegistered(Event{
		Pattern:  Pattern(expr),
		Location: Location(stepFunc),
		Keyword:  keyword,
	})
}

// Pattern returns the text of a step expression.
func Pattern(expr interface{}) string {
	switch e := expr.(type) {
	case string:
		return e
	case []byte:
		return string(e)
	case *regexp.Regexp:
		return e.String()
	default:
		return fmt.Sprint(expr)
	}
}

// Location describes a step handler as pkg.Type.method(params).
func Location(stepFunc interface{}) string {
	sym := funcname.Of(stepFunc)
	return sym.Qualified() + "(" + strings.Join(funcname.Params(stepFunc), ", ") + ")"
}
