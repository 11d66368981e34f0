// Command visionocr extracts text from images with a local vision model or
// a remote provider, from the command line, over HTTP or from an SQS queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/visionocr/config"
	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	settings   config.Settings

	okLabel   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	dimText   = color.New(color.Faint).SprintFunc()
	keyText   = color.New(color.FgCyan).SprintFunc()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", failLabel("error:"), errx.Print(err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "visionocr",
		Short:         "Extract text from images with vision models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logx.SetLevel(logx.DebugLevel)
			}
			var err error
			settings, err = config.Load(configPath)
			return err
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML or JSON config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		extractCmd(),
		batchCmd(),
		devicesCmd(),
		serveCmd(),
		workerCmd(),
		lambdaCmd(),
		submitCmd(),
		tokenCmd(),
		runsCmd(),
	)
	return root
}
