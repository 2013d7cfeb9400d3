package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomatool/stepindex/stepdef"
)

const eatingFeature = `Feature: Eating
  Scenario: eat
    Given there are 12 godogs
    When I eat 5
    Then there should be 7 remaining
`

func writeFeature(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestChecker(f finder, features ...string) *Checker {
	return &Checker{finder: f, path: ".", features: features}
}

func statuses(results []CheckResult) map[string]string {
	out := make(map[string]string)
	for _, r := range results {
		key := r.Category + "/" + r.Item
		if prev, ok := out[key]; ok && prev == statusError {
			continue
		}
		out[key] = r.Status
	}
	return out
}

func TestCheck(t *testing.T) {
	ambiguous := append(godogsDefinitions("/src"), stepdef.Definition{
		ID:         "example.com/godogs.eatAnything",
		Expression: stepdef.NewExpression(`^I eat \d+$`),
		Line:       stepdef.UnknownLine,
	})

	tests := []struct {
		name    string
		defs    []stepdef.Definition
		content string
		want    string
	}{
		{"all defined", godogsDefinitions("/src"), eatingFeature, statusOK},
		{"undefined", godogsDefinitions("/src")[:2], eatingFeature, statusWarning},
		{"ambiguous", ambiguous, eatingFeature, statusError},
		{"parse error", godogsDefinitions("/src"), "Feature: a\n  @wip\n", statusError},
		{"no feature", godogsDefinitions("/src"), "# nothing here\n", statusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFeature(t, dir, "eating.feature", tt.content)

			c := newTestChecker(&fakeFinder{defs: tt.defs}, dir)
			c.check(context.Background())

			got := statuses(c.results)
			assert.Equal(t, statusOK, got["Steps/."])
			assert.Equal(t, tt.want, got["Features/eating.feature"])
		})
	}
}

func TestCheckSameTextUnderEachKeyword(t *testing.T) {
	defs := []stepdef.Definition{
		{ID: "given", Keyword: "Given", Expression: stepdef.NewExpression(`^the basket is empty$`)},
	}
	dir := t.TempDir()
	writeFeature(t, dir, "basket.feature", `Feature: Basket
  Scenario: empty
    Given the basket is empty
    Then the basket is empty
`)

	c := newTestChecker(&fakeFinder{defs: defs}, dir)
	c.check(context.Background())

	got := statuses(c.results)
	assert.Equal(t, statusWarning, got["Features/basket.feature"])
	for _, r := range c.results {
		if r.Item == "basket.feature" {
			assert.Equal(t, "1 undefined step(s): 4: the basket is empty", r.Message)
		}
	}
}

func TestCheckWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "eating.feature", eatingFeature)
	writeFeature(t, dir, "nested/more.feature", eatingFeature)
	writeFeature(t, dir, "testdata/skipped.feature", "not gherkin at all\nFeature: b\nFeature: c\n")
	writeFeature(t, dir, "README.md", "# readme")

	files, err := featureFiles([]string{dir, filepath.Join(dir, "missing")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "eating.feature"),
		filepath.Join(dir, "nested", "more.feature"),
	}, files)
}

func TestCheckFinderFailure(t *testing.T) {
	c := newTestChecker(&fakeFinder{err: errors.New("no go toolchain")}, t.TempDir())
	c.check(context.Background())

	require.Len(t, c.results, 1)
	assert.Equal(t, statusError, c.results[0].Status)
	assert.Equal(t, "no go toolchain", c.results[0].Message)
}

func TestCheckNoFeatures(t *testing.T) {
	c := newTestChecker(&fakeFinder{}, filepath.Join(t.TempDir(), "features"))
	c.check(context.Background())

	got := statuses(c.results)
	assert.Equal(t, statusWarning, got["Steps/."])
	assert.Equal(t, statusWarning, got["Features/(none)"])
}

func TestRunPlain(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "eating.feature", eatingFeature)

	var out bytes.Buffer
	c := newTestChecker(&fakeFinder{defs: godogsDefinitions("/src")}, dir)
	require.NoError(t, c.runPlain(context.Background(), &out))
	assert.Contains(t, out.String(), "✓ eating.feature: 1 scenario(s)")
	assert.Contains(t, out.String(), "Summary: 2 passed, 0 warnings, 0 errors")
	assert.Contains(t, out.String(), "Check passed!")

	out.Reset()
	writeFeature(t, dir, "broken.feature", "Feature: a\n  @wip\n")
	c = newTestChecker(&fakeFinder{defs: godogsDefinitions("/src")}, dir)
	err := c.runPlain(context.Background(), &out)
	assert.EqualError(t, err, "check failed with 1 error(s)")
	assert.Contains(t, out.String(), "✗ broken.feature: parse error")
}

func TestCheckModel(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "eating.feature", eatingFeature)

	c := newTestChecker(&fakeFinder{defs: godogsDefinitions("/src")[:2]}, dir)
	m := newCheckModel(context.Background(), c)
	assert.Contains(t, m.View(), "Dry running glue")

	c.check(context.Background())
	next, cmd := m.Update(checkDoneMsg{})
	require.NotNil(t, cmd)

	done := next.(checkModel)
	assert.True(t, done.done)
	assert.True(t, done.hasWarnings)
	assert.False(t, done.hasErrors)
	assert.Contains(t, done.View(), "1 undefined step(s): 5: there should be 7 remaining")
	assert.Contains(t, done.View(), "Check passed with warnings")
}
