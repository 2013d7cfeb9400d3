package glue

import (
	"bytes"
	"testing"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartSteps(ctx Registrar) {
	ctx.Given(`^an empty cart$`, func() error { return nil })
	ctx.Step(`^I add (\d+) items?$`, func(n int) error { return nil })
}

func checkoutSteps(ctx Registrar) {
	ctx.Then(`^the total is (\d+)$`, func(n int) error { return nil })
}

func TestRegister(t *testing.T) {
	t.Cleanup(reset)
	reset()

	Register(cartSteps)
	Register(checkoutSteps)
	Register(cartSteps)

	got := Registered()
	require.Len(t, got, 2)
	assert.Equal(t, "github.com/tomatool/stepindex/glue", got[0].Package)
	assert.Equal(t, "github.com/tomatool/stepindex/glue.cartSteps", got[0].Name)
	assert.Equal(t, "github.com/tomatool/stepindex/glue.checkoutSteps", got[1].Name)
}

func TestRegisterNil(t *testing.T) {
	assert.Panics(t, func() { Register(nil) })
}

func TestWithin(t *testing.T) {
	t.Cleanup(reset)
	reset()

	Register(cartSteps)

	assert.Len(t, Within("github.com/tomatool/stepindex"), 1)
	assert.Len(t, Within("github.com/tomatool/stepindex/glue"), 1)
	assert.Empty(t, Within("github.com/tomatool/step"))
	assert.Empty(t, Within("github.com/acme/shop"))
}

func TestInScope(t *testing.T) {
	tests := []struct {
		pkg, prefix string
		want        bool
	}{
		{"example.com/shop", "example.com/shop", true},
		{"example.com/shop/steps", "example.com/shop", true},
		{"example.com/shop/steps_test", "example.com/shop/steps", true},
		{"example.com/shopping", "example.com/shop", false},
		{"example.com/other", "example.com/shop", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, InScope(tt.pkg, tt.prefix), "%s in %s", tt.pkg, tt.prefix)
	}
}

func TestScenario(t *testing.T) {
	var out bytes.Buffer
	suite := godog.TestSuite{
		Name:                "glue",
		ScenarioInitializer: Scenario(cartSteps, checkoutSteps),
		Options: &godog.Options{
			Format:              "progress",
			Output:              &out,
			NoColors:            true,
			ShowStepDefinitions: true,
		},
	}
	suite.Run()

	assert.Contains(t, out.String(), `^an empty cart$`)
	assert.Contains(t, out.String(), `^I add (\d+) items?$`)
	assert.Contains(t, out.String(), `^the total is (\d+)$`)
}
