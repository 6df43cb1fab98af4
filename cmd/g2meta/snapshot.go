// Snapshot command converts a YAML metadata dump to the fast binary
// snapshot form.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dairiki/g2-metadata/internal/snapshot"
)

var snapshotOutput string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <metadata>",
	Short: "Convert a YAML metadata dump to a binary snapshot",
	Long: `Snapshot reads a YAML metadata dump and writes it back in a compact
binary form that loads much faster. Later commands accept either form;
files ending in ` + snapshotExt + ` are read as snapshots.

Example:
  g2meta snapshot metadata.yaml
  g2meta snapshot -o gallery.snap metadata.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOutput, "output", "o", "", "output file (default: input with "+snapshotExt+" extension)")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	input := args[0]
	doc, err := readMetadata(input)
	if err != nil {
		return err
	}

	output := snapshotOutput
	if output == "" {
		if input == "-" {
			output = "metadata" + snapshotExt
		} else {
			output = strings.TrimSuffix(input, ".yaml") + snapshotExt
		}
	}

	w, closeOut, err := openOutput(output)
	if err != nil {
		return err
	}
	if err := snapshot.Write(w, doc); err != nil {
		closeOut()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return closeOut()
}
