package cli

import (
	"fmt"
	"os"

	"github.com/jo-hoe/melonripe/internal/core"
	"github.com/spf13/cobra"
)

func newClassifyCmd(opts *options) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "classify <image file>",
		Short: "Classify a watermelon photo",
		Long: `Runs the configured preprocessing and the ripeness model on an image file.
With --save the preprocessed image and the result are added to the history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			return opts.withService(cmd.Context(), func(service *core.CoreService) error {
				classify := service.Classify
				if save {
					classify = service.ClassifyAndRecord
				}
				result, err := classify(cmd.Context(), image)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%d%%)\n", result.Label, result.Accuracy)
				if result.Record != nil {
					fmt.Fprintf(out, "saved as #%d\n", result.Record.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "record the result in the history")
	return cmd
}
