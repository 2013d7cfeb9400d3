package runner

import "github.com/cucumber/godog"

// SuiteRunner runs a godog test suite and returns its exit status.
type SuiteRunner interface {
	Run(suite godog.TestSuite) int
}

// godogSuite runs suites in process.
type godogSuite struct{}

func (godogSuite) Run(suite godog.TestSuite) int {
	return suite.Run()
}
