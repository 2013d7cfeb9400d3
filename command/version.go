package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/tomatool/stepindex/internal/version"
)

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "Print version information",
	Action: func(c *cli.Context) error {
		info := version.Info()
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := c.App.Writer
		fmt.Fprintf(w, "stepindex version %s\n", version.Version)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-9s %s\n", k+":", info[k])
		}
		return nil
	},
}
