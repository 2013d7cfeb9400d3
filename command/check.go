package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cucumber/godog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/tomatool/stepindex/internal/feature"
	"github.com/tomatool/stepindex/progress"
	"github.com/tomatool/stepindex/provider"
	"github.com/tomatool/stepindex/stepdef"
)

var checkCommand = &cli.Command{
	Name:      "check",
	Usage:     "Check that every step of the feature files matches exactly one step definition",
	ArgsUsage: "[path]",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "features",
			Aliases: []string{"p"},
			Usage:   "Feature file or directory (default: <path>/features, can be specified multiple times)",
		},
		&cli.BoolFlag{
			Name:  "plain",
			Usage: "disable colors and interactive UI (for CI)",
		},
	},
	Action: runCheck,
}

const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Category   string
	Item       string
	Status     string
	Message    string
	Suggestion string
}

// Checker matches the steps of feature files against the step
// definitions of a module.
type Checker struct {
	finder   finder
	path     string
	features []string
	results  []CheckResult
}

func runCheck(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = "."
	}

	features := c.StringSlice("features")
	if len(features) == 0 {
		features = []string{filepath.Join(path, "features")}
	}

	checker := &Checker{
		finder:   provider.New(),
		path:     path,
		features: features,
	}

	if c.Bool("plain") {
		return checker.runPlain(c.Context, c.App.Writer)
	}
	return checker.runInteractive(c.Context)
}

func (c *Checker) runPlain(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, "Checking feature files...")
	fmt.Fprintln(w)

	c.check(ctx)

	categories, order := groupResults(c.results)
	for _, category := range order {
		fmt.Fprintf(w, "[%s]\n", category)
		for _, r := range categories[category] {
			icon := "✓"
			if r.Status == statusError {
				icon = "✗"
			} else if r.Status == statusWarning {
				icon = "!"
			}

			fmt.Fprintf(w, "  %s %s", icon, r.Item)
			if r.Message != "" {
				fmt.Fprintf(w, ": %s", r.Message)
			}
			fmt.Fprintln(w)

			if r.Suggestion != "" {
				fmt.Fprintf(w, "    → %s\n", r.Suggestion)
			}
		}
		fmt.Fprintln(w)
	}

	okCount, warningCount, errorCount := summarize(c.results)
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warningCount, errorCount)

	if errorCount > 0 {
		return fmt.Errorf("check failed with %d error(s)", errorCount)
	}
	if warningCount > 0 {
		fmt.Fprintln(w, "Check passed with warnings")
	} else {
		fmt.Fprintln(w, "Check passed!")
	}
	return nil
}

func (c *Checker) runInteractive(ctx context.Context) error {
	p := tea.NewProgram(newCheckModel(ctx, c), tea.WithContext(ctx))
	m, err := p.Run()
	if err != nil {
		return err
	}

	if m.(checkModel).hasErrors {
		return errors.New("check failed")
	}
	return nil
}

func (c *Checker) add(r CheckResult) {
	c.results = append(c.results, r)
}

func (c *Checker) check(ctx context.Context) {
	defs, err := c.finder.FindStepDefinitions(ctx, c.path, &progress.Log{Logger: log.Logger})
	if err != nil {
		c.add(CheckResult{
			Category:   "Steps",
			Item:       c.path,
			Status:     statusError,
			Message:    err.Error(),
			Suggestion: "Run with --log-level debug for details",
		})
		return
	}

	if len(defs) == 0 {
		c.add(CheckResult{
			Category:   "Steps",
			Item:       c.path,
			Status:     statusWarning,
			Message:    "no step definitions registered",
			Suggestion: "Register the module's scenario initializers with glue.Register",
		})
	} else {
		c.add(CheckResult{
			Category: "Steps",
			Item:     c.path,
			Status:   statusOK,
			Message:  fmt.Sprintf("%d step definition(s)", len(defs)),
		})
	}

	files, err := featureFiles(c.features)
	if err != nil {
		c.add(CheckResult{
			Category: "Features",
			Item:     strings.Join(c.features, ", "),
			Status:   statusError,
			Message:  err.Error(),
		})
		return
	}
	if len(files) == 0 {
		c.add(CheckResult{
			Category:   "Features",
			Item:       "(none)",
			Status:     statusWarning,
			Message:    "no feature files found",
			Suggestion: "Point --features at the directory holding your .feature files",
		})
		return
	}

	for _, file := range files {
		c.checkFeature(file, defs)
	}
}

func (c *Checker) checkFeature(path string, defs []stepdef.Definition) {
	item := filepath.Base(path)

	content, err := os.ReadFile(path)
	if err != nil {
		c.add(CheckResult{
			Category: "Features",
			Item:     item,
			Status:   statusError,
			Message:  fmt.Sprintf("cannot read file: %v", err),
		})
		return
	}

	doc, pickles, err := feature.Parse(godog.Feature{Name: path, Contents: content})
	if err != nil {
		c.add(CheckResult{
			Category:   "Features",
			Item:       item,
			Status:     statusError,
			Message:    fmt.Sprintf("parse error: %v", err),
			Suggestion: "Check Gherkin syntax: https://cucumber.io/docs/gherkin/reference/",
		})
		return
	}
	if doc.Feature == nil {
		c.add(CheckResult{
			Category:   "Features",
			Item:       item,
			Status:     statusError,
			Message:    "no Feature found in file",
			Suggestion: "Add 'Feature: <name>' at the top of the file",
		})
		return
	}

	var undefined, ambiguous []string
	seen := make(map[string]bool)
	for _, step := range feature.Steps(doc, pickles) {
		key := step.Keyword + "\x00" + step.Text
		if seen[key] {
			continue
		}
		seen[key] = true

		switch matches := stepdef.Matching(defs, step.Text, step.Keyword); {
		case len(matches) == 0:
			undefined = append(undefined, fmt.Sprintf("%d: %s", step.Line, step.Text))
		case len(matches) > 1:
			ambiguous = append(ambiguous, fmt.Sprintf("%d: %s (%d matches)", step.Line, step.Text, len(matches)))
		}
	}

	if len(ambiguous) > 0 {
		c.add(CheckResult{
			Category:   "Features",
			Item:       item,
			Status:     statusError,
			Message:    fmt.Sprintf("%d ambiguous step(s): %s", len(ambiguous), firstFew(ambiguous)),
			Suggestion: "Run 'stepindex list --filter <text>' to see the competing definitions",
		})
	}
	if len(undefined) > 0 {
		c.add(CheckResult{
			Category:   "Features",
			Item:       item,
			Status:     statusWarning,
			Message:    fmt.Sprintf("%d undefined step(s): %s", len(undefined), firstFew(undefined)),
			Suggestion: "Run 'stepindex list' to see available steps",
		})
	}
	if len(ambiguous) == 0 && len(undefined) == 0 {
		c.add(CheckResult{
			Category: "Features",
			Item:     item,
			Status:   statusOK,
			Message:  fmt.Sprintf("%d scenario(s)", len(pickles)),
		})
	}
}

func firstFew(items []string) string {
	if len(items) > 3 {
		items = items[:3]
	}
	return strings.Join(items, ", ")
}

// featureFiles expands paths into the sorted .feature files they name or
// contain.
func featureFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != path && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(p, ".feature") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func groupResults(results []CheckResult) (map[string][]CheckResult, []string) {
	categories := make(map[string][]CheckResult)
	var order []string
	for _, r := range results {
		if _, exists := categories[r.Category]; !exists {
			order = append(order, r.Category)
		}
		categories[r.Category] = append(categories[r.Category], r)
	}
	return categories, order
}

func summarize(results []CheckResult) (okCount, warningCount, errorCount int) {
	for _, r := range results {
		switch r.Status {
		case statusError:
			errorCount++
		case statusWarning:
			warningCount++
		case statusOK:
			okCount++
		}
	}
	return okCount, warningCount, errorCount
}

type checkModel struct {
	ctx         context.Context
	checker     *Checker
	spinner     spinner.Model
	done        bool
	hasErrors   bool
	hasWarnings bool
}

func newCheckModel(ctx context.Context, c *Checker) checkModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return checkModel{
		ctx:     ctx,
		checker: c,
		spinner: s,
	}
}

type checkDoneMsg struct{}

func (m checkModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			m.checker.check(m.ctx)
			return checkDoneMsg{}
		},
	)
}

func (m checkModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case checkDoneMsg:
		m.done = true
		_, warnings, errs := summarize(m.checker.results)
		m.hasErrors = errs > 0
		m.hasWarnings = warnings > 0
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m checkModel) View() string {
	var s strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	categoryStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	suggestionStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)

	s.WriteString("\n")
	s.WriteString(titleStyle.Render("stepindex check"))
	s.WriteString("\n\n")

	if !m.done {
		s.WriteString(m.spinner.View())
		s.WriteString(" Dry running glue and checking features...")
		return s.String()
	}

	categories, order := groupResults(m.checker.results)
	for _, category := range order {
		s.WriteString(categoryStyle.Render(category))
		s.WriteString("\n")

		for _, r := range categories[category] {
			var icon string
			switch r.Status {
			case statusOK:
				icon = okStyle.Render("✓")
			case statusWarning:
				icon = warnStyle.Render("!")
			case statusError:
				icon = errStyle.Render("✗")
			}

			s.WriteString(fmt.Sprintf("  %s %s", icon, r.Item))
			if r.Message != "" {
				s.WriteString(fmt.Sprintf(": %s", r.Message))
			}
			s.WriteString("\n")

			if r.Suggestion != "" {
				s.WriteString(fmt.Sprintf("    %s\n", suggestionStyle.Render("→ "+r.Suggestion)))
			}
		}
		s.WriteString("\n")
	}

	okCount, warningCount, errorCount := summarize(m.checker.results)
	summaryParts := []string{
		okStyle.Render(fmt.Sprintf("%d passed", okCount)),
	}
	if warningCount > 0 {
		summaryParts = append(summaryParts, warnStyle.Render(fmt.Sprintf("%d warnings", warningCount)))
	}
	if errorCount > 0 {
		summaryParts = append(summaryParts, errStyle.Render(fmt.Sprintf("%d errors", errorCount)))
	}
	s.WriteString(fmt.Sprintf("Summary: %s\n", strings.Join(summaryParts, ", ")))

	if m.hasErrors {
		s.WriteString(errStyle.Render("\n✗ Check failed\n"))
	} else if m.hasWarnings {
		s.WriteString(warnStyle.Render("\n! Check passed with warnings\n"))
	} else {
		s.WriteString(okStyle.Render("\n✓ Check passed!\n"))
	}

	return s.String()
}
