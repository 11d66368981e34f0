package inference

import (
	"context"
	"image"

	"github.com/Abraxas-365/visionocr/ai/device"
)

// Runtime is an engine able to load vision-language models, such as an
// Ollama server or a llama.cpp build.
type Runtime interface {
	// Name identifies the runtime ("ollama", "llamacpp")
	Name() string

	// Available returns nil when the runtime can serve loads. It never loads
	// a model.
	Available(ctx context.Context) error

	// LoadProcessor loads the input/output processor for a model identifier
	LoadProcessor(ctx context.Context, id string) (Processor, error)

	// LoadModel loads model weights at the requested precision
	LoadModel(ctx context.Context, id string, opts LoadOptions) (Model, error)
}

// Processor turns an image and prompt into model inputs and generated
// tokens back into text.
type Processor interface {
	Encode(ctx context.Context, img image.Image, prompt string) (Inputs, error)
	Decode(gen Generation, skipSpecialTokens bool) (string, error)
	SpecialTokens() SpecialTokens
}

// Model is a loaded model resident on one device
type Model interface {
	// To places the weights on a device
	To(ctx context.Context, dev device.Device) error

	// Eval switches the model to inference mode
	Eval()

	Generate(ctx context.Context, in Inputs, opts GenerateOptions) (Generation, error)

	Device() device.Device
	Precision() Precision

	// Close releases the weights
	Close() error
}

// LoadOptions describes how weights are loaded
type LoadOptions struct {
	Device       device.Device
	Precision    Precision
	Quantization Quantization
}

// GenerateOptions controls one generation pass
type GenerateOptions struct {
	MaxNewTokens int
	// Greedy selects deterministic decoding
	Greedy bool
	// PadToken and EOSToken stop generation when produced
	PadToken string
	EOSToken string
}

// SpecialTokens are the processor's control markers
type SpecialTokens struct {
	Pad string
	EOS string
	// Extra are other control tokens removed when decoding with
	// skipSpecialTokens
	Extra []string
}

// All returns every non-empty special token
func (s SpecialTokens) All() []string {
	out := make([]string, 0, 2+len(s.Extra))
	for _, tok := range append([]string{s.Pad, s.EOS}, s.Extra...) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Inputs is an encoded prompt/image pair bound to a device
type Inputs struct {
	Prompt string
	// Images holds PNG encoded images
	Images [][]byte
	Device device.Device
}

// Generation is the raw output of a generation pass
type Generation struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	DoneReason       string
}
