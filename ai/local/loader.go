package local

import (
	"context"

	"github.com/Abraxas-365/visionocr/ai/device"
	"github.com/Abraxas-365/visionocr/ai/inference"
	"github.com/Abraxas-365/visionocr/logx"
)

// loadedModel is a processor and model pair owned by one Backend
type loadedModel struct {
	id        string
	processor inference.Processor
	model     inference.Model
}

func (m *loadedModel) close() error {
	if m == nil || m.model == nil {
		return nil
	}
	return m.model.Close()
}

// load brings a model up: processor first, then weights at the derived
// precision, explicit placement for unquantized weights, then inference
// mode. Any failure releases what was loaded and returns ErrLoadFailed.
func load(ctx context.Context, rt inference.Runtime, id string, dev device.Device, q inference.Quantization, log *logx.Logger) (*loadedModel, error) {
	fail := func(stage string, err error) error {
		return ErrRegistry.NewWithCause(ErrLoadFailed, err).
			WithDetail("model", id).
			WithDetail("device", dev.String()).
			WithDetail("stage", stage)
	}

	proc, err := rt.LoadProcessor(ctx, id)
	if err != nil {
		return nil, fail("processor", err)
	}

	precision := inference.PrecisionFor(q, dev)
	model, err := rt.LoadModel(ctx, id, inference.LoadOptions{
		Device:       dev,
		Precision:    precision,
		Quantization: q,
	})
	if err != nil {
		return nil, fail("weights", err)
	}

	if q == inference.QuantNone {
		if err := model.To(ctx, dev); err != nil {
			if cerr := model.Close(); cerr != nil {
				log.Warn("Failed to release %s after placement error: %v", id, cerr)
			}
			return nil, fail("placement", err)
		}
	}
	model.Eval()

	log.Info("Model loaded successfully (%s, %s on %s)", id, precision, dev)
	return &loadedModel{id: id, processor: proc, model: model}, nil
}
