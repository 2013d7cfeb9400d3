package feature

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupply(t *testing.T) {
	features := Supply()
	require.Len(t, features, 1)
	assert.Equal(t, URI, features[0].Name)

	doc, pickles, err := Parse(features[0])
	require.NoError(t, err)
	require.NotNil(t, doc.Feature)
	assert.Equal(t, "Synthetic", doc.Feature.Name)
	assert.Equal(t, URI, doc.Uri)

	require.Len(t, pickles, 1)
	assert.Equal(t, "Synthetic", pickles[0].Name)
	require.Len(t, pickles[0].Steps, 1)
	assert.Equal(t, "a synthetic step", pickles[0].Steps[0].Text)
}

func TestSupplyReturnsCopies(t *testing.T) {
	first := Supply()
	first[0].Contents[0] = 'X'

	second := Supply()
	assert.Equal(t, byte('F'), second[0].Contents[0])
}

func TestParseMalformed(t *testing.T) {
	_, _, err := Parse(godog.Feature{Name: "broken", Contents: []byte("Scenario without feature\n  Given nothing")})
	assert.Error(t, err)
}

func TestEmptyFS(t *testing.T) {
	_, err := EmptyFS{}.Open("features")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
