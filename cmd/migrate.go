package cmd

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"lecture-gen/config"
	"lecture-gen/constant"
	"lecture-gen/repository"
)

func migrate(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "create or update the jobs and videos tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.DBDriver != constant.DBDriverPostgres || config.DB == nil {
				return errors.New("migrate needs db.driver: postgres")
			}
			if err := repository.Migrate(cmd.Context(), config.DB); err != nil {
				return err
			}
			log.Info().Msg("migration finished")
			return nil
		},
	}
}
