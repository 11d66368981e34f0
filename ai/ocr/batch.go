package ocr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Abraxas-365/visionocr/asyncx"
	"github.com/Abraxas-365/visionocr/eventx"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/google/uuid"
)

// Outcome is the result of one batch item. It succeeded iff Err is nil.
type Outcome struct {
	Index    int
	Source   string
	Backend  string
	Result   Result
	Err      error
	Duration time.Duration

	structured bool
}

// OK reports whether the item succeeded
func (o Outcome) OK() bool { return o.Err == nil }

// Record renders the outcome as a structured record. Failures keep the
// empty text and carry the error message.
func (o Outcome) Record() Record {
	if o.Err != nil {
		return Record{Text: "", Error: o.Err.Error(), Backend: o.Backend}
	}
	if o.Result.Record != nil {
		return *o.Result.Record
	}
	return Record{Text: o.Result.Text, Backend: o.Backend}
}

// Value is the caller-facing item value: text for plain batches (empty on
// failure), a Record for structured ones.
func (o Outcome) Value() any {
	if o.structured {
		return o.Record()
	}
	if o.Err != nil {
		return ""
	}
	return o.Result.Text
}

// Report is the serializable form of an Outcome
type Report struct {
	Index      int    `json:"index"`
	Source     string `json:"source"`
	OK         bool   `json:"ok"`
	Value      any    `json:"value"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Report renders the outcome for JSON output
func (o Outcome) Report() Report {
	r := Report{
		Index:      o.Index,
		Source:     o.Source,
		OK:         o.OK(),
		Value:      o.Value(),
		DurationMS: o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		r.Error = o.Err.Error()
	}
	return r
}

// Summarize reports every outcome and counts the failures
func Summarize(outcomes []Outcome) (reports []Report, failed int) {
	reports = make([]Report, len(outcomes))
	for i, o := range outcomes {
		reports[i] = o.Report()
		if !o.OK() {
			failed++
		}
	}
	return reports, failed
}

// Progress is reported after every batch item
type Progress struct {
	BatchID string
	Index   int
	Total   int
	// Done counts finished items, including this one
	Done int
	// Chunk is the zero-based BatchSize group of the item
	Chunk  int
	Chunks int
	Source string
	OK     bool
	Err    error
	Took   time.Duration
}

// Percent is the share of items done
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Done) * 100 / float64(p.Total)
}

// RunBatch extracts every source in order, one at a time. An item failure
// becomes a failure outcome and never stops the batch, so the result always
// has one outcome per source in input order. BatchSize only groups items
// for progress reporting. Once ctx is done the remaining items fail with
// ErrCancelled.
func RunBatch(ctx context.Context, ex Extractor, srcs []imagex.Source, opts ...Option) []Outcome {
	b, ok := newBatch(ctx, ex, srcs, opts)
	if !ok {
		return b.outcomes
	}
	for i, src := range srcs {
		if i%b.o.BatchSize == 0 {
			b.log.Debug("Processing batch %d/%d", i/b.o.BatchSize+1, b.chunks)
		}
		b.run(ctx, ex, i, src)
	}
	return b.finish(ctx)
}

// RunParallel is RunBatch over a pool of exclusively owned backends: each
// item runs on whichever backend is free, at most pool.Len() at a time.
// Outcomes keep input order; progress arrives in completion order.
func RunParallel[B Extractor](ctx context.Context, pool *asyncx.Pool[B], srcs []imagex.Source, opts ...Option) []Outcome {
	members := pool.Members()
	if len(members) == 0 {
		outcomes := make([]Outcome, len(srcs))
		for i, src := range srcs {
			outcomes[i] = Outcome{Index: i, Source: src.String(), Err: ErrRegistry.New(ErrNoBackend)}
		}
		return outcomes
	}

	b, ok := newBatch(ctx, members[0], srcs, opts)
	if !ok {
		return b.outcomes
	}

	// Items never return errors, so Map only bounds concurrency here.
	_, _ = asyncx.Map(ctx, srcs, len(members), func(ctx context.Context, i int, src imagex.Source) (struct{}, error) {
		ex, err := pool.Acquire(ctx)
		if err != nil {
			b.fail(i, err)
			return struct{}{}, nil
		}
		defer pool.Release(ex)
		b.run(ctx, ex, i, src)
		return struct{}{}, nil
	})
	return b.finish(ctx)
}

// batch holds the state shared by the sequential and pooled runners
type batch struct {
	id       string
	backend  string
	o        *Options
	opts     []Option
	log      *logx.Logger
	outcomes []Outcome
	chunks   int
	started  time.Time

	mu   sync.Mutex
	done int
}

func newBatch(ctx context.Context, ex Extractor, srcs []imagex.Source, opts []Option) (*batch, bool) {
	b := &batch{
		id:       uuid.NewString(),
		backend:  ex.Name(),
		opts:     opts,
		outcomes: make([]Outcome, len(srcs)),
		started:  time.Now(),
	}
	for i, src := range srcs {
		b.outcomes[i] = Outcome{Index: i, Source: src.String(), Backend: b.backend}
	}

	o, err := Apply(opts...)
	if err != nil {
		for i := range b.outcomes {
			b.outcomes[i].Err = err
		}
		return b, false
	}
	for i := range b.outcomes {
		b.outcomes[i].structured = o.Structured
	}
	b.o = o
	b.log = o.Logger()
	b.chunks = (len(srcs) + o.BatchSize - 1) / o.BatchSize

	o.publish(ctx, eventx.NewEvent(EventBatchStarted, BatchStarted{
		BatchID: b.id,
		Backend: b.backend,
		Total:   len(srcs),
	}))
	return b, true
}

// run extracts item i unless ctx is already done, then reports it
func (b *batch) run(ctx context.Context, ex Extractor, i int, src imagex.Source) {
	out := &b.outcomes[i]
	if err := ctx.Err(); err != nil {
		out.Err = ErrRegistry.NewWithCause(ErrCancelled, err).WithDetail("index", i)
	} else {
		start := time.Now()
		out.Backend = ex.Name()
		out.Result, out.Err = extractOne(ctx, ex, src, b.opts)
		out.Duration = time.Since(start)
	}
	b.report(ctx, i)
}

func (b *batch) fail(i int, err error) {
	b.outcomes[i].Err = ErrRegistry.NewWithCause(ErrCancelled, err).WithDetail("index", i)
	b.report(context.Background(), i)
}

func (b *batch) report(ctx context.Context, i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done++

	out := b.outcomes[i]
	total := len(b.outcomes)
	if out.Err != nil {
		b.log.Error("Failed to process image %d: %v", i+1, out.Err)
	} else {
		b.log.Info("Processed image %d/%d", i+1, total)
	}

	p := Progress{
		BatchID: b.id,
		Index:   i,
		Total:   total,
		Done:    b.done,
		Chunk:   i / b.o.BatchSize,
		Chunks:  b.chunks,
		Source:  out.Source,
		OK:      out.Err == nil,
		Err:     out.Err,
		Took:    out.Duration,
	}
	for _, fn := range b.o.progress {
		fn(p)
	}
	b.o.publish(ctx, eventx.NewEvent(EventBatchItem, newBatchItem(p)))
}

func (b *batch) finish(ctx context.Context) []Outcome {
	done := BatchCompleted{
		BatchID:    b.id,
		Backend:    b.backend,
		Total:      len(b.outcomes),
		DurationMS: time.Since(b.started).Milliseconds(),
	}
	for _, out := range b.outcomes {
		if out.OK() {
			done.Succeeded++
		} else {
			done.Failed++
		}
	}
	b.o.publish(context.WithoutCancel(ctx), eventx.NewEvent(EventBatchCompleted, done))
	return b.outcomes
}

// extractOne isolates a panicking backend to its item
func extractOne(ctx context.Context, ex Extractor, src imagex.Source, opts []Option) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = ErrRegistry.NewWithMessage(ErrPanicked, fmt.Sprintf("extraction panicked: %v", r)).
				WithDetail("source", src.String())
		}
	}()
	return ex.Extract(ctx, src, opts...)
}
