// Package runner drives godog in dry-run mode to collect the step
// definitions a set of glue functions registers.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tomatool/stepindex/glue"
	"github.com/tomatool/stepindex/internal/collector"
	"github.com/tomatool/stepindex/internal/feature"
	"github.com/tomatool/stepindex/internal/tooling"
)

const tracerName = "stepindex.runner"

// Options configures runner behavior
type Options struct {
	// Concurrency is handed to godog. 0 means one worker per CPU.
	Concurrency int
}

// Scope is what a dry run covers.
type Scope struct {
	// Root is the directory the glue runs in.
	Root string
	// ModulePath is exported to glue as TestedPackageEnv.
	ModulePath string
	Glue       []glue.Entry
	// Concurrency overrides Options.Concurrency when positive.
	Concurrency int
}

// Runner performs dry runs.
type Runner struct {
	suite SuiteRunner
	opts  Options
}

// New creates a new dry runner
func New(opts Options) *Runner {
	return newRunner(godogSuite{}, opts)
}

// newRunner is the internal constructor that allows dependency injection for testing
func newRunner(suite SuiteRunner, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	return &Runner{suite: suite, opts: opts}
}

// Run dry runs the glue of scope against a synthetic feature and returns
// every step it registered. No step body is executed. Once started, a run
// is not cancellable.
func (r *Runner) Run(ctx context.Context, scope Scope) (*collector.Registry, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "runner.Runner.Run",
		trace.WithAttributes(
			attribute.String("module", scope.ModulePath),
			attribute.Int("glue", len(scope.Glue)),
		),
	)
	defer span.End()

	start := time.Now()
	concurrency := r.opts.Concurrency
	if scope.Concurrency > 0 {
		concurrency = scope.Concurrency
	}
	coll := collector.New()
	var listing bytes.Buffer
	initialized := false

	suite := godog.TestSuite{
		Name: "stepindex",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			initialized = true
			rec := collector.Attach(sc, coll)
			for _, e := range scope.Glue {
				log.Debug().Str("glue", e.String()).Msg("registering glue")
				e.Func(rec)
			}
		},
		// With ShowStepDefinitions godog only calls the initializer and
		// prints the registry; it never reads FeatureContents, FS or
		// Concurrency. They still keep a run from touching disk if it ever
		// went past the listing.
		Options: &godog.Options{
			Format:              "progress",
			Output:              &listing,
			NoColors:            true,
			Strict:              true,
			ShowStepDefinitions: true,
			Concurrency:         concurrency,
			FeatureContents:     feature.Supply(),
			FS:                  feature.EmptyFS{},
		},
	}

	log.Debug().
		Str("root", scope.Root).
		Str("module", scope.ModulePath).
		Int("glue", len(scope.Glue)).
		Int("concurrency", concurrency).
		Msg("starting dry run")

	err := withAmbient(scope.Root, scope.ModulePath, func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("glue panicked: %v", p)
			}
		}()
		status := r.suite.Run(suite)
		if !initialized {
			return fmt.Errorf("godog exited with status %d before registering steps", status)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, tooling.New(tooling.KindRuntimeExecution, "dry run", err)
	}

	reg := coll.Drain()
	span.SetAttributes(attribute.Int("steps", reg.Len()))
	crossCheck(listing.String(), reg.Len())

	log.Debug().
		Int("steps", reg.Len()).
		Int("types", len(reg.Types())).
		Dur("duration", time.Since(start)).
		Msg("dry run finished")
	return reg, nil
}

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

const noDefinitions = "there were no contexts registered"

// ListedDefinitions counts the step definitions in godog's printed listing.
func ListedDefinitions(listing string) int {
	n := 0
	scanner := bufio.NewScanner(strings.NewReader(ansi.ReplaceAllString(listing, "")))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, noDefinitions) {
			continue
		}
		if strings.Contains(line, "# ") {
			n++
		}
	}
	return n
}

func crossCheck(listing string, collected int) {
	log.Debug().Str("listing", ansi.ReplaceAllString(listing, "")).Msg("godog step definitions")
	if listed := ListedDefinitions(listing); listed != collected {
		log.Warn().
			Int("listed", listed).
			Int("collected", collected).
			Msg("godog listing disagrees with collected registrations")
	}
}
