package inference

import (
	"fmt"
	"strings"

	"github.com/Abraxas-365/visionocr/ai/device"
)

// Quantization is the requested weight compression
type Quantization int

const (
	QuantNone Quantization = iota
	QuantInt4
	QuantInt8
)

func (q Quantization) String() string {
	switch q {
	case QuantInt4:
		return "4bit"
	case QuantInt8:
		return "8bit"
	default:
		return "none"
	}
}

// ParseQuantization accepts none, 4bit and 8bit with common spellings
func ParseQuantization(s string) (Quantization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "no":
		return QuantNone, nil
	case "4bit", "4-bit", "int4", "q4":
		return QuantInt4, nil
	case "8bit", "8-bit", "int8", "q8":
		return QuantInt8, nil
	}
	return QuantNone, ErrRegistry.NewWithMessage(ErrInvalidQuantization,
		fmt.Sprintf("unknown quantization %q (want none, 4bit or 8bit)", s)).
		WithDetail("quantization", s)
}

// Precision is the numeric format weights are held in
type Precision int

const (
	FP32 Precision = iota
	FP16
	Int4
	Int8
)

func (p Precision) String() string {
	switch p {
	case FP16:
		return "fp16"
	case Int4:
		return "int4"
	case Int8:
		return "int8"
	default:
		return "fp32"
	}
}

// PrecisionFor derives the load precision. Unquantized models run in half
// precision on accelerators and full precision on the CPU.
func PrecisionFor(q Quantization, dev device.Device) Precision {
	switch q {
	case QuantInt4:
		return Int4
	case QuantInt8:
		return Int8
	}
	if dev.IsCPU() {
		return FP32
	}
	return FP16
}
