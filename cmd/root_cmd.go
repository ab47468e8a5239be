package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:               "aq",
	Short:             "Aq is a tool for processing various types of data.",
	Long:              "Aq is a tool for processing various types of data. It reads TOML documents, selects values from them and writes them back as normalised TOML.",
	PersistentPreRunE: initConfig,
	SilenceUsage:      true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Aq",
	Long:  `All software has versions. This is Aq's`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("Aq v0.2 -- HEAD")
	},
}

func init() {
	rootCmd.PersistentFlags().String(
		ConfigKeyLogLevel,
		DefaultLogLevel.String(),
		"the logging verbosity (panic, fatal, error, warn, info, debug, trace)",
	)
	rootCmd.PersistentFlags().String(
		ConfigKeyConfigFile,
		"",
		"config file (default ./.aq.toml when present)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(tomlCmd)
}
