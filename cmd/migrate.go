package cmd

import (
	"fmt"
	"io"

	"github.com/rubiojr/craftsearch/pkg/storage"
)

// printMigrationStatus shows which schema migrations an index has.
func printMigrationStatus(w io.Writer, idx *storage.Index) error {
	status, err := idx.MigrationStatus()
	if err != nil {
		return fmt.Errorf("getting migration status: %w", err)
	}

	fmt.Fprintf(w, "Index %s (%s)\n", idx.SpaceID(), idx.Path())
	fmt.Fprintf(w, "  Applied: %d, Pending: %d\n", len(status.Applied), len(status.Pending))
	for _, m := range status.Applied {
		fmt.Fprintf(w, "  ✓ %03d %s (applied %s)\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(w, "  • %03d %s (pending)\n", m.Version, m.Name)
	}
	return nil
}
