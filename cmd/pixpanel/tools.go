package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/pix-panel/internal/auth"
	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/primepag"
	"github.com/tbourn/pix-panel/internal/services"
)

func signWebhookCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "sign-webhook <reference-code> <idempotent-id> <value-cents>",
		Short: "Print a signed PrimePag notification body",
		Long: `Print a PrimePag pix_payment notification signed with PRIMEPAG_SECRET_KEY.

Example:
  pixpanel sign-webhook REF-1 order-1 10000 --status paid |
    curl -H 'Content-Type: application/json' -d @- localhost:8080/api/webhook/primepag`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cents, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil || cents <= 0 {
				return fmt.Errorf("value-cents must be a positive integer, got %q", args[2])
			}
			if cfg.PrimePag.SecretKey == "" {
				return fmt.Errorf("PRIMEPAG_SECRET_KEY is not set")
			}
			n := primepag.Notification{
				NotificationType: primepag.NotificationTypePix,
				Message: primepag.Message{
					ValueCents:    cents,
					ReferenceCode: args[0],
					IdempotentID:  args[1],
					Status:        status,
				},
				MD5: primepag.Signature(args[0], args[1], cents, cfg.PrimePag.SecretKey),
			}
			if status == "paid" {
				at := time.Now().UTC().Format(time.RFC3339)
				n.Message.PaymentDate = &at
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(n)
		},
	}
	cmd.Flags().StringVar(&status, "status", "paid", "provider status to report")
	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage panel users",
	}

	var name, email string
	var admin bool
	ensure := &cobra.Command{
		Use:   "ensure <user-id>",
		Short: "Create or refresh a user; the balance is preserved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(false)
			if err != nil {
				return err
			}
			defer closeDB(db)

			u, err := (&services.WalletService{DB: db}).EnsureUser(cmd.Context(), args[0], name, email, role(admin))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s role=%s balance=%s\n", u.ID, u.Role, services.FormatBRL(u.BalanceCents))
			return nil
		},
	}
	ensure.Flags().StringVar(&name, "name", "", "display name")
	ensure.Flags().StringVar(&email, "email", "", "e-mail address")
	ensure.Flags().BoolVar(&admin, "admin", false, "grant the admin role")

	var ttl time.Duration
	var tokenAdmin bool
	token := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a session token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			tok, err := auth.Sign(cfg.Auth.JWTSecret, auth.Identity{UserID: args[0], Role: role(tokenAdmin)}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	token.Flags().BoolVar(&tokenAdmin, "admin", false, "issue an admin token")

	cmd.AddCommand(ensure, token)
	return cmd
}

func role(admin bool) string {
	if admin {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}
