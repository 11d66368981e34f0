package device

import (
	"fmt"
	"strings"

	"github.com/Abraxas-365/visionocr/errx"
)

var ErrRegistry = errx.NewRegistry("DEVICE")

var (
	ErrInvalidRequest = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, 400, "Invalid device request")
)

// Kind is the closed set of compute targets
type Kind int

const (
	Auto Kind = iota
	CUDA
	MPS
	CPU
	Other
)

func (k Kind) String() string {
	switch k {
	case Auto:
		return "auto"
	case CUDA:
		return "cuda"
	case MPS:
		return "mps"
	case CPU:
		return "cpu"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// Request is what the caller asks for. Name is only meaningful for Other.
type Request struct {
	Kind Kind
	Name string
}

// Device is a concrete compute target. It is never Auto.
type Device struct {
	Kind Kind
	Name string
}

func (d Device) String() string {
	if d.Kind == Other {
		return d.Name
	}
	return d.Kind.String()
}

// IsCPU reports whether the device is the CPU
func (d Device) IsCPU() bool { return d.Kind == CPU }

// ParseRequest parses "auto", "cuda", "mps", "cpu" or an explicit device
// string such as "cuda:1", "rocm" or "xpu". The empty string means auto.
func ParseRequest(s string) (Request, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "", "auto":
		return Request{Kind: Auto}, nil
	case "cuda", "gpu":
		return Request{Kind: CUDA}, nil
	case "mps":
		return Request{Kind: MPS}, nil
	case "cpu":
		return Request{Kind: CPU}, nil
	}
	if strings.ContainsAny(name, " \t") || strings.HasPrefix(name, ":") || strings.HasSuffix(name, ":") {
		return Request{}, ErrRegistry.NewWithMessage(ErrInvalidRequest,
			fmt.Sprintf("invalid device %q", s)).WithDetail("device", s)
	}
	return Request{Kind: Other, Name: name}, nil
}

func (r Request) String() string {
	if r.Kind == Other {
		return r.Name
	}
	return r.Kind.String()
}
