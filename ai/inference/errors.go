package inference

import "github.com/Abraxas-365/visionocr/errx"

var (
	ErrRegistry = errx.NewRegistry("INFERENCE")

	ErrRuntimeUnavailable  = ErrRegistry.Register("RUNTIME_UNAVAILABLE", errx.TypeUnavailable, 503, "Inference runtime is not available")
	ErrModelNotFound       = ErrRegistry.Register("MODEL_NOT_FOUND", errx.TypeNotFound, 404, "Model not found")
	ErrProcessorFailed     = ErrRegistry.Register("PROCESSOR_FAILED", errx.TypeInternal, 500, "Processor failed")
	ErrPlacementFailed     = ErrRegistry.Register("PLACEMENT_FAILED", errx.TypeSystem, 500, "Model could not be placed on the device")
	ErrGenerationFailed    = ErrRegistry.Register("GENERATION_FAILED", errx.TypeInternal, 500, "Generation failed")
	ErrInvalidQuantization = ErrRegistry.Register("INVALID_QUANTIZATION", errx.TypeValidation, 400, "Invalid quantization")
)
