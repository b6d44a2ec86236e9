package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/craftsearch/pkg/api"
)

// SpacesCommand creates the spaces command
func SpacesCommand() *cli.Command {
	return &cli.Command{
		Name:  "spaces",
		Usage: "List the spaces that will be searched",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print spaces as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return listSpaces(ctx, c)
		},
	}
}

func listSpaces(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	mgr, err := openSpaces(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	w := c.Root().Writer
	if c.Bool("json") {
		infos := api.NewSpaceInfos(mgr.States())
		return writeJSON(w, api.ListSpacesResponse{Spaces: infos, Count: len(infos)})
	}

	for _, st := range mgr.States() {
		name := st.Name
		if name == "" {
			name = st.ID
		}
		idx, ok := mgr.Get(st.ID)
		if !ok {
			fmt.Fprintf(w, "%s\n", warnStyle.Render(fmt.Sprintf("! %s: %v", name, st.Err)))
			fmt.Fprintf(w, "  id:   %s\n  path: %s\n", st.ID, st.Path)
			continue
		}
		count, err := idx.Count(ctx)
		rows := formatNumber(count)
		if err != nil {
			rows = "?"
			logger.Warnf("counting blocks in %s: %v", st.ID, err)
		}
		fmt.Fprintf(w, "%s %s\n", titleStyle.Render(name), metaStyle.Render(fmt.Sprintf("(%s blocks)", rows)))
		fmt.Fprintf(w, "  id:   %s\n  path: %s\n", st.ID, st.Path)
	}
	return nil
}

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	} else {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}
