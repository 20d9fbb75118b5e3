package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jo-hoe/melonripe/internal/core"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
}

// NewRootCmd builds the melonripe admin command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "melonripe",
		Short: "Administer the melonripe watermelon ripeness service.",
		Long: `melonripe classifies watermelon photos as Ripe or Unripe and keeps a
history of saved results. These commands work on the same configuration,
database and model as the server.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", core.ConfigPath(), "path to the YAML config file")

	cmd.AddCommand(
		newClassifyCmd(opts),
		newHistoryCmd(opts),
		newModelCmd(opts),
	)
	return cmd
}

func (opts *options) loadConfig() (*core.ServiceConfig, error) {
	config, err := core.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if _, err := core.NewLogger(os.Stderr, config.LogLevel); err != nil {
		return nil, err
	}
	return config, nil
}

// withService runs fn with a bootstrapped core service and closes it afterwards.
func (opts *options) withService(ctx context.Context, fn func(*core.CoreService) error) error {
	config, err := opts.loadConfig()
	if err != nil {
		return err
	}
	service, err := core.Bootstrap(ctx, config)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()
	return fn(service)
}

func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
