// Dump command extracts the metadata graph from the gallery database
// and writes it as a YAML document.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dairiki/g2-metadata/internal/dump"
	"github.com/dairiki/g2-metadata/internal/store"
)

var (
	dumpOutput string
	dumpOmit   []string
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump gallery metadata from the database to YAML",
	Long: `Dump reads the whole metadata graph from the Gallery2 database and
writes it as a single YAML document. Items that appear more than once
in the graph are emitted once and aliased everywhere else, so shared
structure and cycles survive a round trip.

The database connection comes from db.driver and db.dsn in the config
file, overridable with the --driver and --dsn flags.

Example:
  g2meta dump -o metadata.yaml
  g2meta dump --dsn gallery2.db --omit derivatives -o metadata.yaml`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpOutput, "output", "o", "-", "output file (\"-\" for stdout)")
	dumpCmd.Flags().StringSliceVar(&dumpOmit, "omit", nil, "item attributes to leave out of the dump")
	dumpCmd.Flags().String("driver", "", "database driver (sqlite or mysql)")
	dumpCmd.Flags().String("dsn", "", "database data source name")
}

func runDump(cmd *cobra.Command, args []string) error {
	driver := cfg.GetString(cfgKeyDBDriver)
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		driver = v
	}
	dsn := cfg.GetString(cfgKeyDBDSN)
	if v, _ := cmd.Flags().GetString("dsn"); v != "" {
		dsn = v
	}
	if dsn == "" {
		return fmt.Errorf("no database configured (set db.dsn or pass --dsn)")
	}

	db, err := store.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	doc, err := store.Load(cmd.Context(), db)
	if err != nil {
		return fmt.Errorf("load gallery: %w", err)
	}

	w, closeOut, err := openOutput(dumpOutput)
	if err != nil {
		return err
	}
	if err := dump.Dump(w, doc, dump.Options{Omit: dumpOmit}); err != nil {
		closeOut()
		return fmt.Errorf("dump metadata: %w", err)
	}
	return closeOut()
}
