package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/tomatool/stepindex/progress"
	"github.com/tomatool/stepindex/provider"
	"github.com/tomatool/stepindex/stepdef"
)

var (
	packageStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	keywordStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	patternStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	locationStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	unresolvedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Italic(true)
	summaryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

var listCommand = &cli.Command{
	Name:      "list",
	Usage:     "List the step definitions of a Go module",
	ArgsUsage: "[path]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "Only show steps whose pattern or method contains this text",
		},
		&cli.BoolFlag{
			Name:  "unresolved",
			Usage: "Only show steps that could not be linked to source",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output in JSON format",
		},
		&cli.BoolFlag{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "List again whenever a .go file of the module changes",
		},
	},
	Action: runList,
}

// finder is satisfied by *provider.Provider.
type finder interface {
	FindStepDefinitions(ctx context.Context, resource string, sink progress.Sink) ([]stepdef.Definition, error)
}

type listOptions struct {
	filter     string
	unresolved bool
	json       bool
}

func runList(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = "."
	}
	if c.Args().Len() > 1 {
		return fmt.Errorf("list takes at most one path, got %d", c.Args().Len())
	}

	opts := listOptions{
		filter:     c.String("filter"),
		unresolved: c.Bool("unresolved"),
		json:       c.Bool("json"),
	}
	p := provider.New()

	if !c.Bool("watch") {
		return list(c.Context, p, path, opts, c.App.Writer)
	}

	return watch(c.Context, path, func([]string) {
		if err := list(c.Context, p, path, opts, c.App.Writer); err != nil {
			log.Error().Err(err).Str("path", path).Msg("listing step definitions failed")
		}
	})
}

func list(ctx context.Context, f finder, path string, opts listOptions, w io.Writer) error {
	sink := &progress.Log{Logger: log.Logger}
	defs, err := f.FindStepDefinitions(ctx, path, sink)
	if err != nil {
		return fmt.Errorf("finding step definitions: %w", err)
	}

	defs = filterDefinitions(defs, opts.filter, opts.unresolved)

	if opts.json {
		output, err := json.MarshalIndent(defs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	render(w, defs, path)
	return nil
}

func filterDefinitions(defs []stepdef.Definition, filter string, unresolvedOnly bool) []stepdef.Definition {
	filter = strings.ToLower(filter)
	out := make([]stepdef.Definition, 0, len(defs))
	for _, d := range defs {
		if unresolvedOnly && d.Resolved() {
			continue
		}
		if filter != "" &&
			!strings.Contains(strings.ToLower(d.Expression.Text), filter) &&
			!strings.Contains(strings.ToLower(d.Method), filter) {
			continue
		}
		out = append(out, d)
	}
	return out
}

func render(w io.Writer, defs []stepdef.Definition, path string) {
	var order []string
	groups := make(map[string][]stepdef.Definition)
	for _, d := range defs {
		pkg := d.Package
		if pkg == "" {
			pkg = "(unresolved)"
		}
		if _, ok := groups[pkg]; !ok {
			order = append(order, pkg)
		}
		groups[pkg] = append(groups[pkg], d)
	}

	resolved := 0
	for _, pkg := range order {
		fmt.Fprintf(w, "\n%s\n", packageStyle.Render(pkg))
		for _, d := range groups[pkg] {
			keyword := d.Keyword
			if keyword == "" {
				keyword = "Step"
			}
			fmt.Fprintf(w, "  %s %s\n", keywordStyle.Render(fmt.Sprintf("%-5s", keyword)), patternStyle.Render(d.Expression.Text))
			if d.Resolved() {
				resolved++
				fmt.Fprintf(w, "        %s\n", locationStyle.Render(location(d, path)))
			} else {
				fmt.Fprintf(w, "        %s\n", unresolvedStyle.Render(d.Method))
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", summaryStyle.Render(fmt.Sprintf("%d step definitions, %d resolved", len(defs), resolved)))
}

// location returns file:line method, with file relative to path when it
// is below it. Definitions from an index without files show only the line.
func location(d stepdef.Definition, path string) string {
	if d.Resource == "" {
		return "line " + strconv.Itoa(d.Line) + " " + d.Method + params(d.Parameters)
	}
	file := d.Resource
	if base, err := filepath.Abs(path); err == nil {
		if info, err := os.Stat(base); err == nil && !info.IsDir() {
			base = filepath.Dir(base)
		}
		if rel, err := filepath.Rel(base, file); err == nil && !strings.HasPrefix(rel, "..") {
			file = rel
		}
	}
	return file + ":" + strconv.Itoa(d.Line) + " " + d.Method + params(d.Parameters)
}

func params(ps []stepdef.Parameter) string {
	types := make([]string, 0, len(ps))
	for _, p := range ps {
		types = append(types, p.Type)
	}
	return "(" + strings.Join(types, ", ") + ")"
}
