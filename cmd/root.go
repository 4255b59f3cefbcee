package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/faceindex/internal/config"
	"github.com/andresmejia3/faceindex/internal/logger"
	"github.com/andresmejia3/faceindex/internal/store"
	"github.com/andresmejia3/faceindex/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// DB is the database connection shared by subcommands. It is opened lazily
	// because most commands only touch index files.
	DB *store.Store
	// cfg is the resolved configuration, available after PersistentPreRunE.
	cfg *config.Config

	configPath string
	dbURL      string
	verbose    bool
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "faceindex",
	Short:         "Build and query face embedding indexes over image collections",
	Version:       Version, // This enables the --version flag
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables take precedence.
		_ = godotenv.Load()

		logger.SetVerbose(verbose)

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbURL != "" {
			cfg.Database.URL = dbURL
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
			DB = nil
		}
	},
}

// openStore connects to PostgreSQL on first use.
func openStore(ctx context.Context) (*store.Store, error) {
	if DB != nil {
		return DB, nil
	}
	s, err := store.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = s
	return DB, nil
}

// reportedError marks an error whose report box was already printed.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// report prints the boxed error (with worker logs when available) and returns
// err marked so Execute does not print it twice.
func report(context string, err error, s *utils.SafeCommand) error {
	utils.ShowError(context, err, s)
	return reportedError{err}
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var re reportedError
		if !errors.As(err, &re) {
			utils.ShowError("Command failed", err, nil)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: postgres://localhost:5432/faceindex)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug and info logging")
}
