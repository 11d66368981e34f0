package ocr

import (
	"context"

	"github.com/Abraxas-365/visionocr/eventx"
)

// Batch lifecycle event types
const (
	EventBatchStarted   = "batch.started"
	EventBatchItem      = "batch.item"
	EventBatchCompleted = "batch.completed"
)

// BatchStarted is published before the first item
type BatchStarted struct {
	BatchID string `json:"batch_id"`
	Backend string `json:"backend"`
	Total   int    `json:"total"`
}

// BatchItem is published after every item
type BatchItem struct {
	BatchID    string  `json:"batch_id"`
	Index      int     `json:"index"`
	Total      int     `json:"total"`
	Chunk      int     `json:"chunk"`
	Source     string  `json:"source"`
	OK         bool    `json:"ok"`
	Error      string  `json:"error,omitempty"`
	Percent    float64 `json:"percent"`
	DurationMS int64   `json:"duration_ms"`
}

// BatchCompleted is published after the last item
type BatchCompleted struct {
	BatchID    string `json:"batch_id"`
	Backend    string `json:"backend"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
}

func newBatchItem(p Progress) BatchItem {
	item := BatchItem{
		BatchID:    p.BatchID,
		Index:      p.Index,
		Total:      p.Total,
		Chunk:      p.Chunk,
		Source:     p.Source,
		OK:         p.OK,
		Percent:    p.Percent(),
		DurationMS: p.Took.Milliseconds(),
	}
	if p.Err != nil {
		item.Error = p.Err.Error()
	}
	return item
}

// publish sends an event to every configured bus. Bus failures are logged
// and never affect outcomes.
func (o *Options) publish(ctx context.Context, e eventx.Event) {
	for _, bus := range o.buses {
		if err := bus.Publish(ctx, e); err != nil {
			o.Logger().Warn("Failed to publish %s: %v", e.Type(), err)
		}
	}
}
