package ollama

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/ollama/ollama/api"
)

type processor struct {
	model string
}

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

// SpecialTokens lists markers some vision templates leak into responses
func (p *processor) SpecialTokens() inference.SpecialTokens {
	return inference.SpecialTokens{
		EOS:   "<|endoftext|>",
		Extra: []string{"<|im_end|>", "<end_of_turn>", "<|eot_id|>", "</s>"},
	}
}

type model struct {
	rt        *Runtime
	name      string
	precision inference.Precision
	dev       device.Device
	placed    bool
	eval      bool
}

// To loads the weights into the server with the placement implied by dev.
// Generation requests repeat the same options so the server never reloads
// the model elsewhere.
func (m *model) To(ctx context.Context, dev device.Device) error {
	options, err := placementOptions(dev)
	if err != nil {
		return err
	}
	stream := false
	req := &api.GenerateRequest{
		Model:     m.name,
		Stream:    &stream,
		KeepAlive: keepResident,
		Options:   options,
	}
	start := time.Now()
	err = m.rt.client.Generate(ctx, req, func(api.GenerateResponse) error { return nil })
	if err != nil {
		return inference.ErrRegistry.NewWithCause(inference.ErrPlacementFailed, err).
			WithDetail("model", m.name).
			WithDetail("device", dev.String())
	}
	m.dev = dev
	m.placed = true
	m.rt.log.Debug("Model %s resident on %s after %s", m.name, dev, time.Since(start).Round(time.Millisecond))
	return nil
}

func (m *model) Eval() { m.eval = true }

func (m *model) Device() device.Device { return m.dev }

func (m *model) Precision() inference.Precision { return m.precision }

func (m *model) Generate(ctx context.Context, in inference.Inputs, opts inference.GenerateOptions) (inference.Generation, error) {
	if !m.placed {
		return inference.Generation{}, inference.ErrRegistry.NewWithMessage(inference.ErrGenerationFailed,
			"model is not placed on a device").WithDetail("model", m.name)
	}

	// m.dev passed placementOptions in To
	options, _ := placementOptions(m.dev)
	if opts.MaxNewTokens > 0 {
		options["num_predict"] = opts.MaxNewTokens
	}
	if opts.Greedy {
		options["temperature"] = 0
		options["top_k"] = 1
		options["seed"] = 0
	}
	var stops []string
	for _, s := range []string{opts.PadToken, opts.EOSToken} {
		if s != "" {
			stops = append(stops, s)
		}
	}
	if len(stops) > 0 {
		options["stop"] = stops
	}

	images := make([]api.ImageData, 0, len(in.Images))
	for _, img := range in.Images {
		images = append(images, api.ImageData(img))
	}

	stream := false
	req := &api.GenerateRequest{
		Model:     m.name,
		Prompt:    in.Prompt,
		Images:    images,
		Stream:    &stream,
		KeepAlive: keepResident,
		Options:   options,
	}

	var (
		gen inference.Generation
		sb  strings.Builder
	)
	err := m.rt.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		if resp.Done {
			gen.DoneReason = resp.DoneReason
			gen.PromptTokens = resp.PromptEvalCount
			gen.CompletionTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return inference.Generation{}, inference.ErrRegistry.NewWithCause(inference.ErrGenerationFailed, err).
			WithDetail("model", m.name)
	}
	gen.Text = sb.String()
	return gen, nil
}

// Close unloads the model from the server
func (m *model) Close() error {
	if !m.placed {
		return nil
	}
	stream := false
	req := &api.GenerateRequest{
		Model:     m.name,
		Stream:    &stream,
		KeepAlive: &api.Duration{Duration: 0},
	}
	m.placed = false
	if err := m.rt.client.Generate(context.Background(), req, func(api.GenerateResponse) error { return nil }); err != nil {
		return inference.ErrRegistry.NewWithCause(inference.ErrRuntimeUnavailable, err).
			WithDetail("model", m.name)
	}
	return nil
}

func placementOptions(dev device.Device) (map[string]any, error) {
	options := map[string]any{}
	if n, ok := numGPU(dev); ok {
		options["num_gpu"] = n
	}
	idx, ok, err := mainGPU(dev)
	if err != nil {
		return nil, err
	}
	if ok {
		options["main_gpu"] = idx
	}
	return options, nil
}
