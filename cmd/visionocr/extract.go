package main

import (
	"encoding/json"
	"fmt"

	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/spf13/cobra"
)

type extractFlags struct {
	prompt       string
	structured   bool
	maxNewTokens int
	batchSize    int
	model        string
}

func (f *extractFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "instruction sent with the image")
	cmd.Flags().BoolVarP(&f.structured, "structured", "s", false, "print structured records")
	cmd.Flags().IntVar(&f.maxNewTokens, "max-new-tokens", 0, "generation limit")
	cmd.Flags().StringVar(&f.model, "model", "", "override backend.model")
}

// options layers the flags that were set over the configured defaults
func (f *extractFlags) options(cmd *cobra.Command) []ocr.Option {
	opts := extractDefaults(settings)
	if f.prompt != "" {
		opts = append(opts, ocr.WithPrompt(f.prompt))
	}
	if cmd.Flags().Changed("structured") {
		opts = append(opts, ocr.WithStructured(f.structured))
	}
	if f.maxNewTokens != 0 {
		opts = append(opts, ocr.WithMaxNewTokens(f.maxNewTokens))
	}
	if f.batchSize != 0 {
		opts = append(opts, ocr.WithBatchSize(f.batchSize))
	}
	return opts
}

func (f *extractFlags) apply() {
	if f.model != "" {
		settings.Backend.Model = f.model
		settings.Remote.Model = f.model
	}
}

func extractCmd() *cobra.Command {
	var flags extractFlags
	cmd := &cobra.Command{
		Use:   "extract IMAGE",
		Short: "Extract text from one image (local path or s3:// URL)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply()
			ctx := cmd.Context()

			files, err := fileSystem(ctx, settings)
			if err != nil {
				return err
			}
			backend, err := openBackend(ctx, settings, imageLoader(settings, files))
			if err != nil {
				return err
			}
			defer backend.Close()

			res, err := backend.Extract(ctx, imagex.Path(args[0]), flags.options(cmd)...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Record != nil {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Record)
			}
			fmt.Fprintln(out, res.Text)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
