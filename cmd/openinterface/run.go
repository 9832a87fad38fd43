package main

import (
	"fmt"
	"os"
	"strings"

	"openinterface/internal/config"
	"openinterface/internal/llm"
	"openinterface/internal/logging"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		step       int
		screenshot string
		format     string
		copyResult bool
	)

	cmd := &cobra.Command{
		Use:   "run <objective...>",
		Short: "Ask the model for the steps toward an objective",
		Example: `  openinterface run open the terminal and list my files
  openinterface run --step 1 --screenshot /tmp/screen.png "finish the signup form"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			objective := strings.Join(args, " ")

			coord, store, err := newCoordinator(ctx)
			if err != nil {
				return err
			}
			defer coord.Cleanup()

			var opts []llm.RequestOption
			if screenshot != "" {
				opts = append(opts, llm.WithScreenshot(screenshot))
			}

			set, err := coord.GetInstructions(ctx, objective, step, opts...)
			if err != nil {
				return err
			}

			out, err := renderInstructions(set, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)

			if copyResult {
				data, err := marshalJSON(set)
				if err != nil {
					return err
				}
				if err := clipboard.WriteAll(data); err != nil {
					logging.Warn("clipboard copy failed", "error", err)
					fmt.Fprintf(os.Stderr, "Warning: could not copy to clipboard: %v\n", err)
				}
			}

			if set.Done && store.Load().Bool(config.KeyPlayDingOnCompletion) {
				fmt.Fprint(os.Stderr, "\a")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&step, "step", 0, "step index of this request within the objective")
	cmd.Flags().StringVar(&screenshot, "screenshot", "", "screenshot reference sent with the request (image files are attached for vision models)")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json or yaml")
	cmd.Flags().BoolVar(&copyResult, "copy", false, "copy the JSON result to the clipboard")

	return cmd
}
