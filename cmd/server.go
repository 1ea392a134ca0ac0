package cmd

import (
	"github.com/spf13/cobra"
	"lecture-gen/config"
	server2 "lecture-gen/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server, job workers and stale job sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server2.RunHttp(config)
		},
	}
}
