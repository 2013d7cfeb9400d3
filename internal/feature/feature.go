// Package feature supplies the in-memory feature godog needs before it will
// build a suite.
package feature

import (
	"bytes"
	"fmt"
	"io/fs"
	"sync"

	gherkin "github.com/cucumber/gherkin/go/v26"
	"github.com/cucumber/godog"
	messages "github.com/cucumber/messages/go/v21"
	"github.com/google/uuid"
)

// URI names the synthetic feature. It never refers to a file.
const URI = "stepindex:synthetic.feature"

const synthetic = `Feature: Synthetic
  Scenario: Synthetic
    Given a synthetic step
`

var checkOnce sync.Once

// Supply returns the single synthetic feature. It panics if the feature
// does not parse.
func Supply() []godog.Feature {
	checkOnce.Do(func() {
		if _, _, err := Parse(Synthetic()); err != nil {
			panic(fmt.Sprintf("feature: synthetic feature is malformed: %v", err))
		}
	})
	return []godog.Feature{Synthetic()}
}

// Synthetic returns a fresh copy of the synthetic feature.
func Synthetic() godog.Feature {
	return godog.Feature{Name: URI, Contents: []byte(synthetic)}
}

// Parse parses a feature into its gherkin document and pickles.
func Parse(f godog.Feature) (*messages.GherkinDocument, []*messages.Pickle, error) {
	doc, err := gherkin.ParseGherkinDocument(bytes.NewReader(f.Contents), uuid.NewString)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", f.Name, err)
	}
	doc.Uri = f.Name
	return doc, gherkin.Pickles(*doc, f.Name, uuid.NewString), nil
}

// EmptyFS is a file system with no files. Handing it to godog keeps the
// suite from looking for features on disk.
type EmptyFS struct{}

// Open always fails with fs.ErrNotExist.
func (EmptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
