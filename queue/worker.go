// Package queue runs batch extraction jobs received from SQS.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/eventx"
	"github.com/Abraxas-365/visionocr/fsx"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/Abraxas-365/visionocr/storex"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

var (
	ErrRegistry = errx.NewRegistry("QUEUE")

	ErrReceiveFailed = ErrRegistry.Register("RECEIVE_FAILED", errx.TypeExternal, 502, "Failed to receive messages")
	ErrInvalidJob    = ErrRegistry.Register("INVALID_JOB", errx.TypeValidation, 400, "Invalid job message")
	ErrOutputFailed  = ErrRegistry.Register("OUTPUT_FAILED", errx.TypeExternal, 502, "Failed to write job output")
	ErrSendFailed    = ErrRegistry.Register("SEND_FAILED", errx.TypeExternal, 502, "Failed to send message")
)

// API is the subset of the SQS client used here
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// NewClient creates an SQS client with the default AWS credential chain
func NewClient(ctx context.Context, region string) (*sqs.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(ErrReceiveFailed, err).WithDetail("stage", "config")
	}
	return sqs.NewFromConfig(cfg), nil
}

// Worker long-polls a queue and runs each job as one batch on its backend
type Worker struct {
	client     API
	queueURL   string
	backend    ocr.Backend
	files      fsx.FileSystem
	store      storex.RunStore
	bus        eventx.EventBus
	log        *logx.Logger
	wait       int32
	visibility int32
}

// Option configures a Worker
type Option func(*Worker)

// WithFileSystem sets where job outputs are written
func WithFileSystem(fs fsx.FileSystem) Option { return func(w *Worker) { w.files = fs } }

// WithStore persists every job as a run
func WithStore(s storex.RunStore) Option { return func(w *Worker) { w.store = s } }

// WithEvents publishes batch events on bus
func WithEvents(bus eventx.EventBus) Option { return func(w *Worker) { w.bus = bus } }

// WithLogger sets the logger
func WithLogger(l *logx.Logger) Option { return func(w *Worker) { w.log = l } }

// WithPolling sets the long-poll wait and the visibility timeout in seconds
func WithPolling(wait, visibility int) Option {
	return func(w *Worker) {
		w.wait = int32(wait)
		w.visibility = int32(visibility)
	}
}

// NewWorker creates a worker for queueURL
func NewWorker(client API, queueURL string, backend ocr.Backend, opts ...Option) *Worker {
	w := &Worker{
		client:   client,
		queueURL: queueURL,
		backend:  backend,
		wait:     20,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logx.Named("queue")
	}
	return w
}

// Run polls until ctx is done. Receive errors are logged and retried after
// a pause.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Polling %s", w.queueURL)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error("%s", errx.Print(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// Poll receives one round of messages and handles them in order. It returns
// the number of jobs completed.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     w.wait,
	}
	if w.visibility > 0 {
		in.VisibilityTimeout = w.visibility
	}
	out, err := w.client.ReceiveMessage(ctx, in)
	if err != nil {
		return 0, ErrRegistry.NewWithCause(ErrReceiveFailed, err).WithDetail("queue", w.queueURL)
	}

	done := 0
	for _, msg := range out.Messages {
		body := aws.ToString(msg.Body)
		job, err := ParseJob(body)
		if err != nil {
			// Unparseable messages would be redelivered forever
			w.log.Warn("Dropping message %s: %v", aws.ToString(msg.MessageId), err)
			w.delete(ctx, msg.ReceiptHandle)
			continue
		}
		if _, err := w.Handle(ctx, job); err != nil {
			w.log.Error("Job %s failed, leaving it for redelivery: %s", job.ID, errx.Print(err))
			continue
		}
		w.delete(ctx, msg.ReceiptHandle)
		done++
	}
	return done, nil
}

func (w *Worker) delete(ctx context.Context, receipt *string) {
	_, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: receipt,
	})
	if err != nil {
		w.log.Warn("Failed to delete message: %v", err)
	}
}

// Handle runs one job. Item failures are part of the result; only a
// failure to record the result is returned as an error.
func (w *Worker) Handle(ctx context.Context, job Job) (JobResult, error) {
	opts := append(job.Options(), ocr.WithLogger(w.log.WithPrefix(job.ID)))
	if w.bus != nil {
		opts = append(opts, ocr.WithEvents(w.bus))
	}

	w.log.Info("Job %s: %d images", job.ID, len(job.Images))
	started := time.Now()
	outcomes := w.backend.ExtractBatch(ctx, imagex.Paths(job.Images...), opts...)

	reports, failed := ocr.Summarize(outcomes)
	res := JobResult{
		JobID:     job.ID,
		RunID:     uuid.NewString(),
		Backend:   w.backend.Name(),
		Succeeded: len(outcomes) - failed,
		Failed:    failed,
		Outcomes:  reports,
	}

	var errs []error
	if job.Output != "" {
		if err := w.writeOutput(ctx, job.Output, res); err != nil {
			errs = append(errs, err)
		}
	}
	if w.store != nil {
		run := storex.NewRun(res.RunID, res.Backend, "", outcomes, started)
		if err := w.store.SaveRun(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	w.log.Info("Job %s done: %d succeeded, %d failed", job.ID, res.Succeeded, res.Failed)
	return res, errors.Join(errs...)
}

func (w *Worker) writeOutput(ctx context.Context, path string, res JobResult) error {
	if w.files == nil {
		return ErrRegistry.NewWithMessage(ErrOutputFailed, "no file system configured").WithDetail("output", path)
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return ErrRegistry.NewWithCause(ErrOutputFailed, err).WithDetail("output", path)
	}
	if err := w.files.WriteFile(ctx, path, data); err != nil {
		return ErrRegistry.NewWithCause(ErrOutputFailed, err).WithDetail("output", path)
	}
	return nil
}

// Submit enqueues a job and returns its ID, generating one when empty
func Submit(ctx context.Context, client API, queueURL string, job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return "", ErrRegistry.NewWithCause(ErrInvalidJob, err)
	}
	_, err = client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", ErrRegistry.NewWithCause(ErrSendFailed, err).WithDetail("queue", queueURL)
	}
	return job.ID, nil
}
