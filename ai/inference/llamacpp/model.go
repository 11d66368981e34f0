package llamacpp

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/ai/inference"
)

type processor struct{}

func (p *processor) Encode(ctx context.Context, img image.Image, prompt string) (inference.Inputs, error) {
	if err := ctx.Err(); err != nil {
		return inference.Inputs{}, err
	}
	data, err := inference.EncodePNG(img)
	if err != nil {
		return inference.Inputs{}, err
	}
	return inference.Inputs{Prompt: prompt, Images: [][]byte{data}}, nil
}

func (p *processor) Decode(gen inference.Generation, skipSpecialTokens bool) (string, error) {
	if !skipSpecialTokens {
		return gen.Text, nil
	}
	return inference.StripSpecialTokens(gen.Text, p.SpecialTokens().All()), nil
}

func (p *processor) SpecialTokens() inference.SpecialTokens {
	return inference.SpecialTokens{
		Pad:   "<pad>",
		EOS:   "</s>",
		Extra: []string{"[end of text]", "<|im_end|>", "<|endoftext|>", "<end_of_turn>"},
	}
}

type model struct {
	rt        *Runtime
	weights   string
	mmproj    string
	precision inference.Precision
	dev       device.Device
	placement []string
	placed    bool
}

// To records the layer offload flags for dev. Every generation starts a
// fresh process, so placement is applied per run.
func (m *model) To(ctx context.Context, dev device.Device) error {
	args, err := placementArgs(dev)
	if err != nil {
		return err
	}
	if err := m.rt.Available(ctx); err != nil {
		return err
	}
	m.dev = dev
	m.placement = args
	m.placed = true
	return nil
}

func (m *model) Eval() {}

func (m *model) Device() device.Device { return m.dev }

func (m *model) Precision() inference.Precision { return m.precision }

func (m *model) Generate(ctx context.Context, in inference.Inputs, opts inference.GenerateOptions) (inference.Generation, error) {
	if !m.placed {
		return inference.Generation{}, inference.ErrRegistry.NewWithMessage(inference.ErrGenerationFailed,
			"model is not placed on a device").WithDetail("model", m.weights)
	}
	if len(in.Images) == 0 {
		return inference.Generation{}, inference.ErrRegistry.NewWithMessage(inference.ErrGenerationFailed,
			"no image in inputs")
	}

	dir, err := os.MkdirTemp("", "visionocr-*")
	if err != nil {
		return inference.Generation{}, inference.ErrRegistry.NewWithCause(inference.ErrGenerationFailed, err)
	}
	defer os.RemoveAll(dir)

	args := []string{"-m", m.weights, "--mmproj", m.mmproj}
	for i, data := range in.Images {
		path := filepath.Join(dir, fmt.Sprintf("image-%d.png", i))
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return inference.Generation{}, inference.ErrRegistry.NewWithCause(inference.ErrGenerationFailed, err)
		}
		args = append(args, "--image", path)
	}
	args = append(args, "-p", in.Prompt)
	if opts.MaxNewTokens > 0 {
		args = append(args, "-n", strconv.Itoa(opts.MaxNewTokens))
	}
	if opts.Greedy {
		args = append(args, "--temp", "0", "--top-k", "1")
	}
	if m.rt.threads > 0 {
		args = append(args, "-t", strconv.Itoa(m.rt.threads))
	}
	args = append(args, m.placement...)

	out, err := m.rt.run(ctx, m.rt.binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return inference.Generation{}, inference.ErrRegistry.NewWithCause(inference.ErrGenerationFailed, err).
			WithDetail("model", filepath.Base(m.weights))
	}

	text, stopped := inference.CutAtStop(string(out), opts.PadToken, opts.EOSToken)
	reason := "length"
	if stopped || strings.Contains(text, "[end of text]") {
		reason = "stop"
	}
	return inference.Generation{Text: text, DoneReason: reason}, nil
}

func (m *model) Close() error {
	m.placed = false
	return nil
}

// placementArgs maps a device to llama.cpp offload flags. "cuda:N" selects
// the main GPU.
func placementArgs(dev device.Device) ([]string, error) {
	switch dev.Kind {
	case device.CPU:
		return []string{"-ngl", "0"}, nil
	case device.CUDA, device.MPS:
		return []string{"-ngl", "999"}, nil
	case device.Other:
		args := []string{"-ngl", "999"}
		if _, idx, ok := strings.Cut(dev.Name, ":"); ok {
			if _, err := strconv.Atoi(idx); err != nil {
				return nil, inference.ErrRegistry.NewWithMessage(inference.ErrPlacementFailed,
					"invalid device index").WithDetail("device", dev.Name)
			}
			args = append(args, "--main-gpu", idx)
		}
		return args, nil
	}
	return nil, inference.ErrRegistry.NewWithMessage(inference.ErrPlacementFailed,
		"unresolved device").WithDetail("device", dev.String())
}
