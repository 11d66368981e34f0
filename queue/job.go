package queue

import (
	"encoding/json"

	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/validatex"
)

// Job is one batch request carried in a queue message body
type Job struct {
	ID           string   `json:"job_id" validatex:"required,max=128"`
	Images       []string `json:"images" validatex:"required,max=1000,location"`
	Prompt       string   `json:"prompt,omitempty"`
	Structured   bool     `json:"structured,omitempty"`
	MaxNewTokens int      `json:"max_new_tokens,omitempty" validatex:"min=1"`
	BatchSize    int      `json:"batch_size,omitempty" validatex:"min=1"`

	// Output is where the JSON result is written, a local path or s3:// URL.
	// Empty keeps the result in the run store only.
	Output string `json:"output,omitempty" validatex:"location"`
}

// JobResult is written to Job.Output
type JobResult struct {
	JobID     string       `json:"job_id"`
	RunID     string       `json:"run_id"`
	Backend   string       `json:"backend"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Outcomes  []ocr.Report `json:"outcomes"`
}

// ParseJob decodes and validates a message body
func ParseJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, ErrRegistry.NewWithCause(ErrInvalidJob, err)
	}
	if err := validatex.Validate(job); err != nil {
		e := ErrRegistry.NewWithCause(ErrInvalidJob, err)
		if v, ok := errx.As(err); ok {
			for k, d := range v.Details {
				e.WithDetail(k, d)
			}
		}
		return Job{}, e
	}
	return job, nil
}

// Options converts the job parameters to extraction options
func (j Job) Options() []ocr.Option {
	opts := []ocr.Option{ocr.WithStructured(j.Structured)}
	if j.Prompt != "" {
		opts = append(opts, ocr.WithPrompt(j.Prompt))
	}
	if j.MaxNewTokens != 0 {
		opts = append(opts, ocr.WithMaxNewTokens(j.MaxNewTokens))
	}
	if j.BatchSize != 0 {
		opts = append(opts, ocr.WithBatchSize(j.BatchSize))
	}
	return opts
}
