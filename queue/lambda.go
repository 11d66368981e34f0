package queue

import (
	"context"

	"github.com/Abraxas-365/visionocr/errx"
	"github.com/aws/aws-lambda-go/events"
)

// HandleSQSEvent runs the jobs of a Lambda SQS batch in order. Jobs that
// could not record their result come back as batch item failures so only
// those messages are redelivered. Unparseable messages are dropped.
func (w *Worker) HandleSQSEvent(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, msg := range ev.Records {
		job, err := ParseJob(msg.Body)
		if err != nil {
			w.log.Warn("Dropping message %s: %v", msg.MessageId, err)
			continue
		}
		if _, err := w.Handle(ctx, job); err != nil {
			w.log.Error("Job %s failed, returning it to the queue: %s", job.ID, errx.Print(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: msg.MessageId,
			})
		}
	}
	return resp, nil
}
