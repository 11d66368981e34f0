package storex

import (
	"context"
	"time"

	"github.com/Abraxas-365/visionocr/ai/ocr"
)

// Page represents pagination metadata
type Page struct {
	Number int `json:"page"`      // Current page number (1-based)
	Size   int `json:"page_size"` // Number of records per page
	Total  int `json:"total"`     // Total number of records
	Pages  int `json:"pages"`     // Total number of pages
}

// Paginated is a generic container for paginated data with metadata
type Paginated[T any] struct {
	Data  []T  `json:"data"`
	Page  Page `json:"pagination"`
	Empty bool `json:"empty"`
}

// NewPaginated creates a new paginated result with calculated fields
func NewPaginated[T any](data []T, page, size, total int) Paginated[T] {
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}
	if data == nil {
		data = []T{}
	}
	return Paginated[T]{
		Data: data,
		Page: Page{
			Number: page,
			Size:   size,
			Total:  total,
			Pages:  pages,
		},
		Empty: len(data) == 0,
	}
}

// HasNext returns whether there are more pages after the current one
func (p Paginated[T]) HasNext() bool {
	return p.Page.Number < p.Page.Pages
}

// PaginationOptions selects a page of runs, newest first
type PaginationOptions struct {
	Page     int
	PageSize int
	Backend  string // optional filter
}

// DefaultPaginationOptions returns the first page of 25
func DefaultPaginationOptions() PaginationOptions {
	return PaginationOptions{Page: 1, PageSize: 25}
}

// Normalize clamps the options to valid values
func (o PaginationOptions) Normalize() PaginationOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = 25
	}
	if o.PageSize > 200 {
		o.PageSize = 200
	}
	return o
}

// Offset returns the number of records to skip
func (o PaginationOptions) Offset() int {
	return (o.Page - 1) * o.PageSize
}

// RunItem is one persisted batch outcome
type RunItem struct {
	Index      int    `json:"index" bson:"index"`
	Source     string `json:"source" bson:"source"`
	Text       string `json:"text" bson:"text"`
	Error      string `json:"error,omitempty" bson:"error,omitempty"`
	DurationMS int64  `json:"duration_ms" bson:"duration_ms"`
}

// Run is a persisted batch extraction
type Run struct {
	ID         string    `json:"id" db:"id" bson:"_id"`
	Backend    string    `json:"backend" db:"backend" bson:"backend"`
	Model      string    `json:"model" db:"model" bson:"model"`
	Total      int       `json:"total" db:"total" bson:"total"`
	Succeeded  int       `json:"succeeded" db:"succeeded" bson:"succeeded"`
	Failed     int       `json:"failed" db:"failed" bson:"failed"`
	StartedAt  time.Time `json:"started_at" db:"started_at" bson:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at" bson:"finished_at"`
	Items      RunItems  `json:"items" db:"items" bson:"items"`
}

// NewRun summarizes batch outcomes into a Run. An empty model is taken
// from the first structured record.
func NewRun(id, backend, model string, outcomes []ocr.Outcome, started time.Time) Run {
	run := Run{
		ID:         id,
		Backend:    backend,
		Model:      model,
		Total:      len(outcomes),
		StartedAt:  started.UTC(),
		FinishedAt: time.Now().UTC(),
		Items:      make(RunItems, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		item := RunItem{
			Index:      o.Index,
			Source:     o.Source,
			DurationMS: o.Duration.Milliseconds(),
		}
		if o.OK() {
			run.Succeeded++
			item.Text = o.Result.Text
			if run.Model == "" && o.Result.Record != nil {
				run.Model = o.Result.Record.Model
			}
		} else {
			run.Failed++
			item.Error = o.Err.Error()
		}
		run.Items = append(run.Items, item)
	}
	return run
}

// RunStore persists batch runs
type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context, opts PaginationOptions) (Paginated[Run], error)
	Close(ctx context.Context) error
}
