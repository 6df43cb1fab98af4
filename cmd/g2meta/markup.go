// Markup-test command renders the bbcode conversion samples.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dairiki/g2-metadata/internal/markup"
)

var markupTestCmd = &cobra.Command{
	Use:   "markup-test",
	Short: "Print bbcode conversion samples for eyeballing",
	Long: `Markup-test renders a fixed set of bbcode samples through the
Markdown converter and the plain-text stripper so the conversion rules
can be checked by eye.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return markup.New().WriteTestPage(os.Stdout)
	},
}
