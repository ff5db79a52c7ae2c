// Command pixpanel runs the PIX receiver panel API and its maintenance
// tasks.
//
//	@title						PIX Panel API
//	@version					1.0
//	@description				PIX deposits, wallet ledger, photo catalog and withdrawals.
//	@BasePath					/api
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/pix-panel/internal/config"
	"github.com/tbourn/pix-panel/internal/sysutil"
)

const serviceName = "pix-panel"

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	envFile string
	cfg     config.Config
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pixpanel",
		Short:         "PIX receiver panel backend",
		Version:       appVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap()
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(expireCmd())
	root.AddCommand(signWebhookCmd())
	root.AddCommand(usersCmd())
	return root
}

// bootstrap loads the dotenv file (when present), reads the configuration
// and installs the global logger.
func bootstrap() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg = c
	sysutil.ConfigureLogger(os.Stderr, serviceName, cfg.LogLevel, cfg.LogPretty)
	return nil
}

func appVersion() string {
	return sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
}
