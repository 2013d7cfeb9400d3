package feature

import (
	"testing"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eating = `Feature: Eating
  Background:
    Given there are 12 godogs

  Scenario: eat
    When I eat 5
    Then there should be 7 remaining

  Scenario Outline: eat many
    When I eat <n>
    And I rest
    Examples:
      | n |
      | 1 |
      | 2 |
`

func TestSteps(t *testing.T) {
	doc, pickles, err := Parse(godog.Feature{Name: "eating.feature", Contents: []byte(eating)})
	require.NoError(t, err)

	steps := Steps(doc, pickles)
	require.Len(t, steps, 9)

	assert.Equal(t, Step{Scenario: "eat", Text: "there are 12 godogs", Keyword: "Given", Line: 3}, steps[0])
	assert.Equal(t, Step{Scenario: "eat", Text: "I eat 5", Keyword: "When", Line: 6}, steps[1])
	assert.Equal(t, Step{Scenario: "eat", Text: "there should be 7 remaining", Keyword: "Then", Line: 7}, steps[2])

	assert.Equal(t, "I eat 1", steps[4].Text)
	assert.Equal(t, int64(10), steps[4].Line)
	assert.Equal(t, "I rest", steps[5].Text)
	assert.Equal(t, "When", steps[5].Keyword)
	assert.Equal(t, int64(11), steps[5].Line)
	assert.Equal(t, "I eat 2", steps[7].Text)
}

func TestStepsEmpty(t *testing.T) {
	assert.Empty(t, Steps(nil, nil))

	doc, pickles, err := Parse(godog.Feature{Name: "empty.feature", Contents: []byte("")})
	require.NoError(t, err)
	assert.Empty(t, Steps(doc, pickles))
}
