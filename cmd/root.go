package cmd

import (
	"github.com/spf13/cobra"
	"lecture-gen/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "lecture-gen",
		Short:        "turn research papers into narrated lecture videos",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(migrate(config))
	return rootCmd
}
