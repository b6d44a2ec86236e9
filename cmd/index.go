package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/craftsearch/pkg/storage"
)

// IndexCommand creates the index command
func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "Build a searchable space from JSON lines block exports",
		ArgsUsage: "<file.jsonl|file.jsonl.zst>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "space",
				Usage:    "Space id of the index to write",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory for the index file (defaults to index_dir)",
			},
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show schema migration status without importing",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return indexFiles(ctx, c)
		},
	}
}

func indexFiles(ctx context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	dir := c.String("dir")
	if dir == "" {
		dir = cfg.IndexDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	spaceID := c.String("space")
	path := filepath.Join(dir, storage.IndexFileName(spaceID))
	idx, err := storage.Create(path, spaceID)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer func() {
		if err := idx.Close(); err != nil {
			logger.Warnf("failed to close index: %v", err)
		}
	}()

	w := c.Root().Writer
	if c.Bool("status") {
		return printMigrationStatus(w, idx)
	}

	files := c.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("no input files given")
	}

	total := 0
	for _, file := range files {
		n, err := importFile(idx, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Imported %d blocks from %s\n", n, file)
		total += n
	}

	count, err := idx.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting blocks: %w", err)
	}
	fmt.Fprintf(w, "Space %s: %d blocks imported, %d in index (%s)\n", spaceID, total, count, path)
	return nil
}

func importFile(idx *storage.Index, file string) (int, error) {
	r, err := storage.OpenRecordsFile(file)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	records, err := storage.ReadRecords(r)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", file, err)
	}
	if err := idx.StoreRecords(records); err != nil {
		return 0, fmt.Errorf("storing blocks from %s: %w", file, err)
	}
	return len(records), nil
}
