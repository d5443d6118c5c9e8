package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"school-inbox/internal/config"
	"school-inbox/internal/core"
	"school-inbox/internal/logging"
	"school-inbox/internal/model"
)

var (
	configPath string
	jsonOutput bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "inboxbot",
		Short:        "Read school portal messages",
		Long:         "inboxbot logs into the school portal, reads unread messages from known teachers and keeps the relevant ones",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "config file path")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print messages as JSON")
	root.AddCommand(unreadCmd(), messageCmd())
	return root
}

func unreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print unread relevant messages from roster senders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withManager(func(ctx context.Context, m *core.Manager) error {
				msgs, err := m.Unread(ctx)
				if err != nil {
					return err
				}
				return printMessages(cmd.OutOrStdout(), msgs)
			})
		},
	}
}

func messageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "message <id>",
		Short: "Print one message by its portal id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(ctx context.Context, m *core.Manager) error {
				msg, err := m.Message(ctx, args[0])
				if err != nil {
					return err
				}
				return printMessages(cmd.OutOrStdout(), []model.Message{msg})
			})
		},
	}
}

func withManager(fn func(ctx context.Context, m *core.Manager) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := fn(ctx, core.NewManager(cfg, logger)); err != nil {
		logger.Error("run failed", logging.Field{Key: "err", Val: err})
		return err
	}
	return nil
}

func printMessages(w io.Writer, msgs []model.Message) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}
	for _, msg := range msgs {
		if _, err := fmt.Fprintf(w, "%s\n\n", msg); err != nil {
			return err
		}
	}
	return nil
}
