package command

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/tomatool/stepindex/internal/version"
)

// Run runs the stepindex command line until it completes or ctx is done.
func Run(ctx context.Context, args []string) error {
	app := &cli.App{
		Name:    "stepindex",
		Usage:   "Discover the godog step definitions of a Go module",
		Version: version.Version,
		Description: `stepindex dry runs the godog glue linked into this binary against a Go
module and links every registered step back to the method that implements
it. Nothing is executed: glue is registered, never run.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"STEPINDEX_LOG_LEVEL"},
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			listCommand,
			checkCommand,
			serveCommand,
			versionCommand,
		},
	}

	return app.RunContext(ctx, args)
}

func setupLogging(c *cli.Context) error {
	level, err := zerolog.ParseLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.String("log-level"), err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}
