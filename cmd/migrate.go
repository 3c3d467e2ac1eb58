package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Prepare the record store schema",
	Long: `Create the musics table (mysql, postgres) or the email index (mongo).
The server does the same on startup; this command lets it run ahead of a deploy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		a := &app{}
		defer a.Close()
		if err := a.openRepository(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s record store is ready\n", cfg.DBDriver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
