package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/pix-panel/internal/events"
	"github.com/tbourn/pix-panel/internal/services"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(true)
			if err != nil {
				return err
			}
			closeDB(db)
			log.Info().Str("driver", cfg.DB.Driver).Msg("schema up to date")
			return nil
		},
	}
}

func expireCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Expire pending PIX charges past their deadline",
		Long: `Expire pending PIX charges past their deadline.

Meant for a scheduler; it performs the same sweep as
POST /api/pix/expire-payments.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(false)
			if err != nil {
				return err
			}
			defer closeDB(db)

			publisher, err := events.New(cfg.Kafka)
			if err != nil {
				log.Warn().Err(err).Msg("kafka unavailable, expiry events dropped")
				publisher = events.Nop{}
			}
			defer func() { _ = publisher.Close() }()

			svc := &services.PixService{DB: db, Events: publisher}
			if dryRun {
				n, err := svc.CountStale(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d payment(s) would expire\n", n)
				return nil
			}
			n, err := svc.ExpireStale(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d payment(s)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only count the payments that would expire")
	return cmd
}
