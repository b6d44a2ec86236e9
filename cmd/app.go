package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/craftsearch/pkg/config"
	"github.com/rubiojr/craftsearch/pkg/log"
)

// App builds the root command. defaultConfig is the value of --config when the
// flag is not given.
func App(defaultConfig string) *cli.Command {
	return &cli.Command{
		Name:  "craftsearch",
		Usage: "Search the full text indexes of Craft Docs spaces",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: defaultConfig,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if c.Bool("debug") {
				log.SetGlobalDebug(true)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			InitCommand(),
			SearchCommand(),
			DocumentsCommand(),
			SpacesCommand(),
			IndexCommand(),
			ServeCommand(),
			VersionCommand(),
		},
	}
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
