package cli

import (
	"fmt"

	"github.com/jo-hoe/melonripe/internal/backend/inference"
	"github.com/spf13/cobra"
)

func newModelCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect the configured model asset",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Load the model and print its input shape",
		Long:  `Loads the model asset named in the config and reports whether it is usable.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := opts.loadConfig()
			if err != nil {
				return err
			}

			loader := inference.NewLoader(config.Model.Path)
			model, err := loader.Load(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path:  %s\n", loader.Path())
			fmt.Fprintf(out, "state: %s\n", loader.State())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "name:  %s\n", model.Name())
			fmt.Fprintf(out, "input: %v\n", model.InputShape())
			return nil
		},
	})
	return cmd
}
