// Command kioku runs a Matrix chat agent with tiered conversation memory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bdobrica/kioku/common/environment"
	"github.com/bdobrica/kioku/common/logging"
	"github.com/bdobrica/kioku/common/version"
	"github.com/bdobrica/kioku/internal/kioku/app"
	"github.com/bdobrica/kioku/internal/kioku/store"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:           "kioku",
	Short:         "kioku - a Matrix chat agent that remembers",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := environment.LoadDotEnv(envFiles...); err != nil {
			return err
		}
		logging.Setup(os.Stderr,
			environment.StringOr("LOG_LEVEL", "info"),
			environment.StringOr("LOG_FORMAT", "text"))
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Matrix and start answering",
	RunE:  runAgent,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many conversations are stored",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	rootCmd.AddCommand(runCmd, statusCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runAgent(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	kioku, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize kioku: %w", err)
	}
	defer kioku.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return kioku.Run(ctx)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	st, err := store.New(environment.StringOr("DATABASE_PATH", defaultDatabasePath))
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.ConversationCount(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\nconversations: %d\n", version.Info(), n)
	return nil
}
