package main

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/visionocr/eventx"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/Abraxas-365/visionocr/queue"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

func queueURL(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if settings.Queue.URL == "" {
		return "", fmt.Errorf("queue.url is not configured")
	}
	return settings.Queue.URL, nil
}

// jobWorker opens the backend, file system, event bus and run store a
// worker needs. release closes them.
func jobWorker(ctx context.Context, client queue.API, url string) (w *queue.Worker, release func(), err error) {
	var closers []func()
	release = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	files, err := fileSystem(ctx, settings)
	if err != nil {
		return nil, nil, err
	}
	backend, err := openBackend(ctx, settings, imageLoader(settings, files))
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() { backend.Close() })

	bus := eventx.NewMemoryBus()
	closers = append(closers, func() { bus.Close() })
	bus.Subscribe(eventx.AllEvents, eventx.LogSink(logx.Named("events")))

	opts := []queue.Option{
		queue.WithFileSystem(files),
		queue.WithEvents(bus),
		queue.WithPolling(settings.Queue.WaitSeconds, settings.Queue.Visibility),
	}
	store, err := openStore(ctx, settings)
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		closers = append(closers, func() { store.Close(context.WithoutCancel(ctx)) })
		opts = append(opts, queue.WithStore(store))
	}
	return queue.NewWorker(client, url, backend, opts...), release, nil
}

func workerCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run batch jobs received from an SQS queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			url, err := queueURL(url)
			if err != nil {
				return err
			}

			client, err := queue.NewClient(ctx, settings.AWS.Region)
			if err != nil {
				return err
			}
			w, release, err := jobWorker(ctx, client, url)
			if err != nil {
				return err
			}
			defer release()
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&url, "queue", "", "queue URL (default queue.url)")
	return cmd
}

// lambdaCmd serves the same jobs from an SQS event source mapping. Lambda
// deletes handled messages itself, so the worker gets no SQS client.
func lambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run batch jobs as an AWS Lambda SQS handler",
		Long: "Run batch jobs as an AWS Lambda SQS handler. Use it as the bootstrap of a\n" +
			"custom runtime with a remote or tesseract backend; a local model is\n" +
			"reloaded on every cold start.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, release, err := jobWorker(ctx, nil, "")
			if err != nil {
				return err
			}
			defer release()
			lambda.StartWithOptions(w.HandleSQSEvent, lambda.WithContext(ctx))
			return nil
		},
	}
}

func submitCmd() *cobra.Command {
	var (
		url    string
		output string
		flags  extractFlags
	)
	cmd := &cobra.Command{
		Use:   "submit IMAGE...",
		Short: "Enqueue a batch job for the worker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			url, err := queueURL(url)
			if err != nil {
				return err
			}
			client, err := queue.NewClient(ctx, settings.AWS.Region)
			if err != nil {
				return err
			}
			id, err := queue.Submit(ctx, client, url, queue.Job{
				Images:       args,
				Prompt:       flags.prompt,
				Structured:   flags.structured,
				MaxNewTokens: flags.maxNewTokens,
				BatchSize:    flags.batchSize,
				Output:       output,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "queue", "", "queue URL (default queue.url)")
	cmd.Flags().StringVarP(&output, "out", "o", "", "where the worker writes the JSON result")
	cmd.Flags().StringVarP(&flags.prompt, "prompt", "p", "", "instruction sent with every image")
	cmd.Flags().BoolVarP(&flags.structured, "structured", "s", false, "return structured records")
	cmd.Flags().IntVar(&flags.maxNewTokens, "max-new-tokens", 0, "generation limit")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "progress chunk size")
	return cmd
}
