package eventx

import (
	"context"
	"io"
	"sync"

	"github.com/Abraxas-365/visionocr/logx"
)

// LogSink logs every event at debug level
func LogSink(log *logx.Logger) EventHandler {
	return func(ctx context.Context, e Event) error {
		log.Debug("event %s %s: %+v", e.Type(), e.ID(), e.Payload())
		return nil
	}
}

// JSONLines writes one JSON document per event to w
func JSONLines(w io.Writer) EventHandler {
	var mu sync.Mutex
	return func(ctx context.Context, e Event) error {
		data, err := ToJSON(e)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		_, err = w.Write(append(data, '\n'))
		return err
	}
}
