package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abate-Agegnehu/musiccollectionbackend/db"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis cache connection",
	Long:  `Connect to the configured Redis server and run a set/get/delete round trip.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Redis: %s, DB: %d\n", cfg.RedisAddr(), cfg.RedisDB)

		client, err := db.ConnectRedis(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := db.CheckRedis(cmd.Context(), client); err != nil {
			return err
		}
		fmt.Fprintln(out, "Redis round trip OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
