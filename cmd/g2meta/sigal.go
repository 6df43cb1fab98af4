// To-sigal command projects metadata onto a sigal album tree.
package main

import (
	"github.com/spf13/cobra"

	"github.com/dairiki/g2-metadata/internal/sigal"
)

var toSigalCmd = &cobra.Command{
	Use:   "to-sigal <metadata>",
	Short: "Write sigal sidecar metadata files for every item",
	Long: `To-sigal walks the album tree in a metadata dump or snapshot and
writes one sidecar metadata file next to each album and media file
under the albums directory. Link items become symlinks.

The albums directory must already hold the gallery's files; missing
files are warned about, not created.

Example:
  g2meta to-sigal metadata.yaml
  g2meta to-sigal --albums-dir /srv/gallery/albums gallery.snap`,
	Args: cobra.ExactArgs(1),
	RunE: runToSigal,
}

func init() {
	toSigalCmd.Flags().String("albums-dir", "", "sigal albums directory (default from config)")
	toSigalCmd.Flags().String("sidecar-ext", "", "sidecar file extension (default from config)")
}

func runToSigal(cmd *cobra.Command, args []string) error {
	doc, err := readMetadata(args[0])
	if err != nil {
		return err
	}

	albumsDir := cfg.GetString(cfgKeyAlbumsDir)
	if v, _ := cmd.Flags().GetString("albums-dir"); v != "" {
		albumsDir = v
	}
	sidecarExt := cfg.GetString(cfgKeySidecarExt)
	if v, _ := cmd.Flags().GetString("sidecar-ext"); v != "" {
		sidecarExt = v
	}

	return sigal.NewWriter(albumsDir, sidecarExt).WriteAll(doc)
}
