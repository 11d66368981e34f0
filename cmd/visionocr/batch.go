package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/ai/local"
	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/asyncx"
	"github.com/Abraxas-365/visionocr/eventx"
	"github.com/Abraxas-365/visionocr/fsx"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/storex"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

type batchFlags struct {
	extractFlags
	dir     string
	out     string
	events  string
	devices []string
	save    bool
}

func batchCmd() *cobra.Command {
	var flags batchFlags
	cmd := &cobra.Command{
		Use:   "batch [IMAGE...]",
		Short: "Extract text from many images; failed images do not stop the batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply()
			return runBatch(cmd, args, &flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "progress chunk size")
	cmd.Flags().StringVar(&flags.dir, "dir", "", "also read every image in this directory or s3:// prefix")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "write JSON results to this path or s3:// URL")
	cmd.Flags().StringVar(&flags.events, "events", "", "append batch events as JSON lines to this file (- for stderr)")
	cmd.Flags().StringSliceVar(&flags.devices, "devices", nil, "run one local model per device in parallel, e.g. cuda:0,cuda:1")
	cmd.Flags().BoolVar(&flags.save, "save", false, "record the run in the configured store")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string, flags *batchFlags) error {
	ctx := cmd.Context()
	files, err := fileSystem(ctx, settings)
	if err != nil {
		return err
	}
	paths := append([]string{}, args...)
	if flags.dir != "" {
		found, err := listImages(ctx, files, flags.dir)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images given")
	}

	opts := flags.options(cmd)
	opts = append(opts, ocr.WithProgress(printProgress(cmd.ErrOrStderr())))

	bus := eventx.NewMemoryBus()
	defer bus.Close()
	if flags.events != "" {
		w, closeFn, err := eventsWriter(flags.events)
		if err != nil {
			return err
		}
		defer closeFn()
		bus.Subscribe(eventx.AllEvents, eventx.JSONLines(w))
		opts = append(opts, ocr.WithEvents(bus))
	}

	images := imageLoader(settings, files)
	srcs := imagex.Paths(paths...)
	started := time.Now()

	var (
		outcomes []ocr.Outcome
		name     string
	)
	if len(flags.devices) > 0 {
		pool, err := openLocalPool(ctx, flags.devices, images)
		if err != nil {
			return err
		}
		defer pool.Close(func(b *local.Backend) error { return b.Close() })
		name = local.Name
		outcomes = ocr.RunParallel(ctx, pool, srcs, opts...)
	} else {
		backend, err := openBackend(ctx, settings, images)
		if err != nil {
			return err
		}
		defer backend.Close()
		name = backend.Name()
		outcomes = backend.ExtractBatch(ctx, srcs, opts...)
	}

	reports, failed := ocr.Summarize(outcomes)
	if flags.out != "" {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return err
		}
		if err := files.WriteFile(ctx, flags.out, data); err != nil {
			return err
		}
	} else {
		printOutcomes(cmd.OutOrStdout(), outcomes)
	}

	if flags.save {
		store, err := openStore(ctx, settings)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close(context.WithoutCancel(ctx))
			run := storex.NewRun(uuid.NewString(), name, "", outcomes, started)
			if err := store.SaveRun(ctx, run); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", keyText("run"), run.ID)
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s %d  %s %d\n",
		okLabel("ok"), len(outcomes)-failed, failLabel("failed"), failed)
	return nil
}

// openLocalPool loads one local model per device. A failure closes the
// models already loaded.
func openLocalPool(ctx context.Context, devices []string, images *imagex.Loader) (*asyncx.Pool[*local.Backend], error) {
	base, rc, err := settings.LocalConfig()
	if err != nil {
		return nil, err
	}
	backends := make([]*local.Backend, 0, len(devices))
	for _, d := range devices {
		req, err := device.ParseRequest(d)
		if err != nil {
			closeAll(backends)
			return nil, err
		}
		cfg := base
		cfg.Device = req
		b, err := local.New(ctx, cfg, local.WithRuntimeConfig(rc), local.WithImageLoader(images))
		if err != nil {
			closeAll(backends)
			return nil, err
		}
		backends = append(backends, b)
	}
	return asyncx.NewPool(backends...), nil
}

func closeAll(backends []*local.Backend) {
	for _, b := range backends {
		b.Close()
	}
}

func listImages(ctx context.Context, files fsx.FileSystem, dir string) ([]string, error) {
	entries, err := files.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir || !imageExts[strings.ToLower(filepath.Ext(e.Name))] {
			continue
		}
		out = append(out, strings.TrimRight(dir, "/")+"/"+e.Name)
	}
	return out, nil
}

func eventsWriter(path string) (io.Writer, func() error, error) {
	if path == "-" {
		return os.Stderr, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func printProgress(w io.Writer) func(ocr.Progress) {
	return func(p ocr.Progress) {
		status := okLabel("ok")
		if !p.OK {
			status = failLabel("fail")
		}
		fmt.Fprintf(w, "%s %5.1f%% %s %s\n",
			dimText(fmt.Sprintf("[%d/%d]", p.Done, p.Total)), p.Percent(), status, p.Source)
	}
}

func printOutcomes(w io.Writer, outcomes []ocr.Outcome) {
	for _, o := range outcomes {
		fmt.Fprintf(w, "%s %s\n", keyText(fmt.Sprintf("== %d", o.Index)), o.Source)
		if !o.OK() {
			fmt.Fprintf(w, "%s %v\n\n", failLabel("error:"), o.Err)
			continue
		}
		if o.Result.Record != nil {
			data, _ := json.MarshalIndent(o.Record(), "", "  ")
			fmt.Fprintf(w, "%s\n\n", data)
			continue
		}
		fmt.Fprintf(w, "%s\n\n", o.Result.Text)
	}
}
