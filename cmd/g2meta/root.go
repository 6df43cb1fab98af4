// Root command for the g2meta CLI.
package main

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Global flag values.
var (
	flagConfigFile string
	flagVerbose    bool
)

// cfg holds the loaded configuration. Set by PersistentPreRunE so all
// subcommands can use it.
var cfg *viper.Viper

var rootCmd = &cobra.Command{
	Use:   "g2meta",
	Short: "g2meta extracts Gallery2 metadata for static galleries",
	Long: `g2meta reads the metadata of a Gallery2 photo gallery from its
database and converts it for use with the sigal static gallery
generator. The metadata passes through a YAML dump that can be
inspected, hand-edited, and snapshotted before projection.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetHandler(cli.New(os.Stderr))
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		}

		var err error
		cfg, err = loadConfig(flagConfigFile)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "config file (default: .g2meta.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(toSigalCmd)
	rootCmd.AddCommand(markupTestCmd)
}
