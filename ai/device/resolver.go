package device

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Prober reports accelerator availability
type Prober interface {
	CUDA() bool
	MPS() bool
}

// Capabilities is a snapshot of what the host offers
type Capabilities struct {
	CUDA bool `json:"cuda"`
	MPS  bool `json:"mps"`
}

// SystemProber inspects the host once and answers from that snapshot, so
// every auto resolution in a process sees the same answer.
type SystemProber struct {
	once sync.Once
	caps Capabilities
}

// NewSystemProber creates a prober for the current host
func NewSystemProber() *SystemProber {
	return &SystemProber{}
}

func (p *SystemProber) CUDA() bool { return p.Probe().CUDA }
func (p *SystemProber) MPS() bool  { return p.Probe().MPS }

// Probe returns the capability snapshot, taking it on first use
func (p *SystemProber) Probe() Capabilities {
	p.once.Do(func() {
		p.caps = Capabilities{
			CUDA: detectCUDA(),
			MPS:  runtime.GOOS == "darwin" && runtime.GOARCH == "arm64",
		}
	})
	return p.caps
}

func detectCUDA() bool {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		v = strings.TrimSpace(v)
		if v == "" || v == "-1" {
			return false
		}
	}
	if _, err := os.Stat("/proc/driver/nvidia/version"); err == nil {
		return true
	}
	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		return true
	}
	return false
}

// Resolver turns a Request into a concrete Device
type Resolver struct {
	prober Prober
}

// NewResolver creates a resolver. A nil prober uses the host.
func NewResolver(prober Prober) *Resolver {
	if prober == nil {
		prober = NewSystemProber()
	}
	return &Resolver{prober: prober}
}

// Resolve never fails. Auto picks CUDA, then MPS, then CPU. Explicit
// requests pass through without probing; a device that is not actually
// present fails later, at model load.
func (r *Resolver) Resolve(req Request) Device {
	if req.Kind != Auto {
		return Device{Kind: req.Kind, Name: req.Name}
	}
	switch {
	case r.prober.CUDA():
		return Device{Kind: CUDA}
	case r.prober.MPS():
		return Device{Kind: MPS}
	default:
		return Device{Kind: CPU}
	}
}

var defaultResolver = NewResolver(nil)

// Resolve resolves against the host
func Resolve(req Request) Device {
	return defaultResolver.Resolve(req)
}

// Probe returns the host capability snapshot
func Probe() Capabilities {
	return defaultResolver.prober.(*SystemProber).Probe()
}
