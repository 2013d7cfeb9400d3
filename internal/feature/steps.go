package feature

import (
	messages "github.com/cucumber/messages/go/v21"
)

// Step is a step of a pickle, located in its feature file.
type Step struct {
	Scenario string
	Text     string
	// Keyword is Given, When or Then, or empty when the step's type is
	// unknown.
	Keyword string
	Line    int64
}

// Steps lists the steps of pickles in order. Scenario outlines are
// expanded, so a step may appear once per example row.
func Steps(doc *messages.GherkinDocument, pickles []*messages.Pickle) []Step {
	lines := stepLines(doc)

	var out []Step
	for _, p := range pickles {
		for _, ps := range p.Steps {
			s := Step{Scenario: p.Name, Text: ps.Text, Keyword: keyword(ps.Type)}
			if len(ps.AstNodeIds) > 0 {
				s.Line = lines[ps.AstNodeIds[0]]
			}
			out = append(out, s)
		}
	}
	return out
}

func keyword(t messages.PickleStepType) string {
	switch t {
	case messages.PickleStepType_CONTEXT:
		return "Given"
	case messages.PickleStepType_ACTION:
		return "When"
	case messages.PickleStepType_OUTCOME:
		return "Then"
	default:
		return ""
	}
}

func stepLines(doc *messages.GherkinDocument) map[string]int64 {
	lines := make(map[string]int64)
	if doc == nil || doc.Feature == nil {
		return lines
	}

	add := func(steps []*messages.Step) {
		for _, s := range steps {
			if s.Location != nil {
				lines[s.Id] = s.Location.Line
			}
		}
	}
	for _, child := range doc.Feature.Children {
		switch {
		case child.Background != nil:
			add(child.Background.Steps)
		case child.Scenario != nil:
			add(child.Scenario.Steps)
		case child.Rule != nil:
			for _, rc := range child.Rule.Children {
				if rc.Background != nil {
					add(rc.Background.Steps)
				}
				if rc.Scenario != nil {
					add(rc.Scenario.Steps)
				}
			}
		}
	}
	return lines
}
