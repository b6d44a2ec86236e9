package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/craftsearch/pkg/api"
	"github.com/rubiojr/craftsearch/pkg/query"
	"github.com/rubiojr/craftsearch/pkg/search"
)

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "query",
			Usage: "Search query (remaining arguments are appended)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of results per space (defaults to result_limit)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print results as JSON",
		},
		&cli.BoolFlag{
			Name:  "stats",
			Usage: "Show per-space timing",
		},
	}
}

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search blocks across all spaces",
		ArgsUsage: "[query...]",
		Flags:     searchFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSearch(ctx, c, search.ModeBlocks)
		},
	}
}

// DocumentsCommand creates the documents command
func DocumentsCommand() *cli.Command {
	return &cli.Command{
		Name:      "documents",
		Usage:     "Search and group matching blocks by document",
		ArgsUsage: "[query...]",
		Flags:     searchFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			return runSearch(ctx, c, search.ModeDocuments)
		},
	}
}

func queryText(c *cli.Command) string {
	parts := []string{}
	if q := c.String("query"); q != "" {
		parts = append(parts, q)
	}
	parts = append(parts, c.Args().Slice()...)
	return strings.Join(parts, " ")
}

func runSearch(ctx context.Context, c *cli.Command, mode search.Mode) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	mgr, err := openSpaces(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Warnf("failed to close indexes: %v", err)
		}
	}()

	settings := cfg.SearchSettings()
	if limit := c.Int("limit"); limit > 0 {
		settings.Limit = limit
	}
	// A command runs one search; nothing would hit the cache.
	settings.CacheSize = 0
	svc := newService(mgr, settings)

	text := queryText(c)
	res, err := svc.Resolve(ctx, mode, text)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	return printResults(c.Root().Writer, res, spaceNames(mgr.Spaces()), c.Bool("json"), c.Bool("stats"))
}

func printResults(w io.Writer, res *search.Results, names map[string]string, asJSON, stats bool) error {
	if asJSON {
		return writeJSON(w, api.NewResultsResponse(res))
	}

	tokens := query.Tokens(res.Query)
	var out string
	if res.Mode == search.ModeDocuments {
		out = formatDocuments(res, names, tokens)
	} else {
		out = formatBlocks(res, names, tokens)
	}
	if stats {
		out += formatSpaceStats(res, names)
	}
	_, err := io.WriteString(w, out)
	return err
}
