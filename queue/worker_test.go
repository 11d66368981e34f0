package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/fsx/localfs"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/Abraxas-365/visionocr/storex"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

func init() {
	logx.SetLevel(logx.OffLevel)
}

type fakeSQS struct {
	mu       sync.Mutex
	pending  []types.Message
	deleted  []string
	sent     []string
	failRecv error
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRecv != nil {
		return nil, f.failRecv
	}
	n := int(in.MaxNumberOfMessages)
	if n > len(f.pending) {
		n = len(f.pending)
	}
	out := &sqs.ReceiveMessageOutput{Messages: f.pending[:n]}
	f.pending = f.pending[n:]
	return out, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func (f *fakeSQS) push(receipt, body string) {
	f.pending = append(f.pending, types.Message{
		MessageId:     aws.String(receipt),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(body),
	})
}

// nameBackend fails sources whose name contains "bad"
type nameBackend struct{}

func (nameBackend) Name() string { return "names" }

func (b nameBackend) Extract(ctx context.Context, src imagex.Source, opts ...ocr.Option) (ocr.Result, error) {
	o, err := ocr.Apply(opts...)
	if err != nil {
		return ocr.Result{}, err
	}
	if strings.Contains(src.String(), "bad") {
		return ocr.Result{}, errors.New("unreadable")
	}
	return ocr.NewResult(strings.ToUpper(src.String()), o, "names", "m", 1), nil
}

func (b nameBackend) ExtractBatch(ctx context.Context, srcs []imagex.Source, opts ...ocr.Option) []ocr.Outcome {
	return ocr.RunBatch(ctx, b, srcs, opts...)
}

func (nameBackend) Close() error { return nil }

func TestParseJob(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid", `{"job_id":"j1","images":["a.png"]}`, true},
		{"not json", `{`, false},
		{"no id", `{"images":["a.png"]}`, false},
		{"no images", `{"job_id":"j1"}`, false},
		{"empty image path", `{"job_id":"j1","images":["a.png",""]}`, false},
		{"bare scheme", `{"job_id":"j1","images":["s3://"]}`, false},
		{"negative tokens", `{"job_id":"j1","images":["a.png"],"max_new_tokens":-1}`, false},
		{"s3 images", `{"job_id":"j1","images":["s3://bucket/a.png"],"output":"s3://bucket/out.json"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJob(tt.body)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if !tt.ok && !errx.IsCode(err, ErrInvalidJob) {
				t.Fatalf("expected INVALID_JOB, got %v", err)
			}
		})
	}
}

func TestJobOptions(t *testing.T) {
	job := Job{Prompt: "read", Structured: true, MaxNewTokens: 32, BatchSize: 4}
	o, err := ocr.Apply(job.Options()...)
	if err != nil {
		t.Fatal(err)
	}
	if o.Prompt != "read" || !o.Structured || o.MaxNewTokens != 32 || o.BatchSize != 4 {
		t.Fatalf("options %+v", o)
	}

	o, _ = ocr.Apply(Job{}.Options()...)
	if o.Prompt != ocr.DefaultPrompt || o.MaxNewTokens != 512 {
		t.Fatalf("defaults not kept: %+v", o)
	}
}

func TestPollRunsJobAndWritesOutput(t *testing.T) {
	dir := t.TempDir()
	client := &fakeSQS{}
	client.push("r1", `{"job_id":"j1","images":["one.png","bad.png","two.png"],"output":"out/j1.json"}`)
	store := storex.NewMemoryStore()

	w := NewWorker(client, "https://sqs/q", nameBackend{},
		WithFileSystem(localfs.New(dir)), WithStore(store), WithPolling(0, 30))

	done, err := w.Poll(context.Background())
	if err != nil || done != 1 {
		t.Fatalf("Poll = %d, %v", done, err)
	}
	if len(client.deleted) != 1 || client.deleted[0] != "r1" {
		t.Fatalf("deleted %v", client.deleted)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out", "j1.json"))
	if err != nil {
		t.Fatal(err)
	}
	var res JobResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatal(err)
	}
	if res.JobID != "j1" || res.Succeeded != 2 || res.Failed != 1 || len(res.Outcomes) != 3 {
		t.Fatalf("result %+v", res)
	}
	if res.Outcomes[1].OK || res.Outcomes[1].Value != "" {
		t.Fatalf("failed item %+v", res.Outcomes[1])
	}
	if res.Outcomes[2].Value != "TWO.PNG" {
		t.Fatalf("order not kept: %+v", res.Outcomes)
	}

	run, err := store.GetRun(context.Background(), res.RunID)
	if err != nil || run.Total != 3 {
		t.Fatalf("run %+v, %v", run, err)
	}
}

func TestPollDropsInvalidMessages(t *testing.T) {
	client := &fakeSQS{}
	client.push("r1", `not json`)
	w := NewWorker(client, "q", nameBackend{})

	done, err := w.Poll(context.Background())
	if err != nil || done != 0 {
		t.Fatalf("Poll = %d, %v", done, err)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("invalid message not deleted: %v", client.deleted)
	}
}

func TestOutputFailureLeavesMessage(t *testing.T) {
	client := &fakeSQS{}
	client.push("r1", `{"job_id":"j1","images":["a.png"],"output":"out.json"}`)
	w := NewWorker(client, "q", nameBackend{})

	done, err := w.Poll(context.Background())
	if err != nil || done != 0 {
		t.Fatalf("Poll = %d, %v", done, err)
	}
	if len(client.deleted) != 0 {
		t.Fatalf("message deleted despite output failure")
	}
}

func TestReceiveError(t *testing.T) {
	client := &fakeSQS{failRecv: errors.New("throttled")}
	w := NewWorker(client, "q", nameBackend{})
	if _, err := w.Poll(context.Background()); !errx.IsCode(err, ErrReceiveFailed) {
		t.Fatalf("expected RECEIVE_FAILED, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewWorker(&fakeSQS{}, "q", nameBackend{})
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestSubmit(t *testing.T) {
	client := &fakeSQS{}
	id, err := Submit(context.Background(), client, "q", Job{Images: []string{"s3://b/a.png"}})
	if err != nil || id == "" {
		t.Fatalf("Submit = %q, %v", id, err)
	}
	job, err := ParseJob(client.sent[0])
	if err != nil || job.ID != id {
		t.Fatalf("sent job %+v, %v", job, err)
	}
}
