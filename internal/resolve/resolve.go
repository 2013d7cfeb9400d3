// Package resolve links collected step declarations to the Go methods and
// functions that implement them.
package resolve

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tomatool/stepindex/internal/collector"
	"github.com/tomatool/stepindex/internal/symbols"
	"github.com/tomatool/stepindex/internal/tooling"
	"github.com/tomatool/stepindex/progress"
	"github.com/tomatool/stepindex/stepdef"
)

// Resolver turns a collected registry into step definitions.
type Resolver struct {
	index symbols.Index
}

// New returns a resolver that looks types up in index.
func New(index symbols.Index) *Resolver {
	return &Resolver{index: index}
}

// Resolve returns one definition per declaration in reg, group by group in
// the order the registry holds them.
//
// Declarations whose type or method cannot be found come back unresolved.
// Only an unusable index fails the call. Cancellation is checked between
// groups; a cancelled call returns what it resolved so far and no error.
func (r *Resolver) Resolve(ctx context.Context, reg *collector.Registry, sink progress.Sink) ([]stepdef.Definition, error) {
	sink = progress.OrNop(sink)
	types := reg.Types()
	sink.Begin(len(types))

	out := make([]stepdef.Definition, 0, reg.Len())
	for _, name := range types {
		if ctx.Err() != nil {
			log.Debug().Int("resolved", len(out)).Int("total", reg.Len()).Msg("resolution cancelled")
			return out, nil
		}

		group := reg.Group(name)
		defs, err := r.resolveGroup(ctx, name, group)
		if err != nil {
			return nil, err
		}
		if defs == nil {
			// Cancelled while looking the type up.
			log.Debug().Int("resolved", len(out)).Int("total", reg.Len()).Msg("resolution cancelled")
			return out, nil
		}
		out = append(out, defs...)
		sink.Worked(1)
	}
	return out, nil
}

func (r *Resolver) resolveGroup(ctx context.Context, name string, group []collector.Declaration) ([]stepdef.Definition, error) {
	if strings.TrimSpace(name) == "" {
		declarationsTotal.WithLabelValues(outcomeAnonymous).Add(float64(len(group)))
		return unresolved(group), nil
	}

	typ, err := r.index.FindType(ctx, name)
	if err == nil && typ == nil {
		err = symbols.ErrNotFound
	}
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, nil
	case errors.Is(err, symbols.ErrUnavailable):
		return nil, tooling.New(tooling.KindIndexUnavailable, "find type "+name, err)
	case errors.Is(err, symbols.ErrNotFound):
		log.Debug().Str("type", name).Msg("declaring type not found")
		declarationsTotal.WithLabelValues(outcomeNoType).Add(float64(len(group)))
		return unresolved(group), nil
	default:
		log.Warn().Err(err).Str("type", name).Msg("type lookup failed")
		lookupErrorsTotal.Inc()
		declarationsTotal.WithLabelValues(outcomeNoType).Add(float64(len(group)))
		return unresolved(group), nil
	}

	defs := make([]stepdef.Definition, 0, len(group))
	for _, d := range group {
		defs = append(defs, resolveOne(typ, d))
	}
	return defs, nil
}

func resolveOne(typ *symbols.Type, d collector.Declaration) stepdef.Definition {
	candidate, ok := MethodName(d.DeclaringType, d.Location)
	if !ok {
		declarationsTotal.WithLabelValues(outcomeMalformed).Inc()
		return stepdef.Unresolved(d.Location, d.Pattern, d.Keyword)
	}

	for _, m := range typ.Methods {
		if m.Name != candidate {
			continue
		}
		declarationsTotal.WithLabelValues(outcomeResolved).Inc()
		resource := m.Resource
		if resource == "" {
			resource = typ.Resource
		}
		id := m.Handle
		if id == "" {
			id = typ.Name + "." + m.Name
		}
		return stepdef.Definition{
			ID:         id,
			Label:      stepdef.NoLabel,
			Keyword:    d.Keyword,
			Expression: stepdef.NewExpression(d.Pattern),
			Resource:   resource,
			Line:       m.Line,
			Method:     m.Name,
			Package:    typ.PackageName,
			Parameters: m.Parameters,
		}
	}

	log.Debug().Str("type", d.DeclaringType).Str("method", candidate).Msg("no declared method matches")
	declarationsTotal.WithLabelValues(outcomeNoMethod).Inc()
	return stepdef.Unresolved(d.Location, d.Pattern, d.Keyword)
}

// MethodName extracts the method name from a location: the text after
// "typeName." up to the first parenthesis. It reports false when there is
// no parenthesis after a non-empty name.
func MethodName(typeName, location string) (string, bool) {
	hint := strings.TrimPrefix(location, typeName+".")
	paren := strings.IndexByte(hint, '(')
	if paren <= 0 {
		return "", false
	}
	return hint[:paren], true
}

func unresolved(group []collector.Declaration) []stepdef.Definition {
	defs := make([]stepdef.Definition, 0, len(group))
	for _, d := range group {
		defs = append(defs, stepdef.Unresolved(d.Location, d.Pattern, d.Keyword))
	}
	return defs
}
