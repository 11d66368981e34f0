package ocr

import (
	"context"

	"github.com/Abraxas-365/visionocr/logx"
)

// Candidate is a backend that can be probed before it is opened
type Candidate struct {
	Name string

	// Available returns nil when Open is expected to succeed. It must not
	// load models.
	Available func(ctx context.Context) error

	Open func(ctx context.Context) (Backend, error)
}

// Select opens the first available candidate in priority order. A
// candidate that probes available but fails to open is skipped.
func Select(ctx context.Context, log *logx.Logger, candidates ...Candidate) (Backend, error) {
	if log == nil {
		log = logx.Named("ocr")
	}
	tried := make(map[string]string, len(candidates))
	for _, c := range candidates {
		if c.Available != nil {
			if err := c.Available(ctx); err != nil {
				log.Debug("Backend %s unavailable: %v", c.Name, err)
				tried[c.Name] = err.Error()
				continue
			}
		}
		b, err := c.Open(ctx)
		if err != nil {
			log.Warn("Backend %s failed to open: %v", c.Name, err)
			tried[c.Name] = err.Error()
			continue
		}
		log.Info("Using %s backend", c.Name)
		return b, nil
	}
	e := ErrRegistry.New(ErrNoBackend)
	for name, reason := range tried {
		e.WithDetail(name, reason)
	}
	return nil, e
}
