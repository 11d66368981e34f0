package server

import (
	"io"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/docx"
	"github.com/Abraxas-365/visionocr/imagex"
	"github.com/Abraxas-365/visionocr/storex"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ExtractResponse is the body of POST /v1/extract
type ExtractResponse struct {
	Text   string      `json:"text"`
	Record *ocr.Record `json:"record,omitempty"`
	Usage  ocr.Usage   `json:"usage"`
}

// BatchResponse is the body of POST /v1/extract/batch
type BatchResponse struct {
	RunID     string       `json:"run_id"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Outcomes  []ocr.Report `json:"outcomes"`
}

func (s *Server) routes() {
	s.app.Use(s.requestLog)
	s.app.Get("/healthz", s.health)

	v1 := s.app.Group("/v1")
	auth := docx.None
	if s.tokens != nil {
		v1.Use(s.tokens.Middleware("extract"))
		auth = docx.Bearer
	}

	doc := docx.NewRouterDoc("/v1")
	doc.AddEndpoint(docx.NewEndpoint("/healthz", docx.GET).WithSummary("Liveness probe"))

	v1.Get("/backend", s.backendInfo)
	doc.AddEndpoint(docx.NewEndpoint("/v1/backend", docx.GET).WithAuth(auth).
		WithSummary("Describe the loaded backend"))

	v1.Post("/extract", s.extractOne)
	doc.AddEndpoint(docx.NewEndpoint("/v1/extract", docx.POST).WithAuth(auth).
		WithSummary("Extract text from one image").
		WithFormField("image", "file", "image to read", true).
		WithFormField("prompt", "string", "instruction sent with the image", false).
		WithFormField("structured", "bool", "return a record alongside the text", false).
		WithFormField("max_new_tokens", "int", "generation limit", false).
		WithResponseDTO(ExtractResponse{}))

	v1.Post("/extract/batch", s.extractBatch)
	doc.AddEndpoint(docx.NewEndpoint("/v1/extract/batch", docx.POST).WithAuth(auth).
		WithSummary("Extract text from several images; failures are reported per item").
		WithFormField("images", "file", "images to read, in order", true).
		WithFormField("prompt", "string", "instruction sent with every image", false).
		WithFormField("structured", "bool", "return records instead of text", false).
		WithFormField("batch_size", "int", "progress chunk size", false).
		WithResponseDTO(BatchResponse{}))

	if s.store != nil {
		v1.Get("/runs", s.listRuns)
		doc.AddEndpoint(docx.NewEndpoint("/v1/runs", docx.GET).WithAuth(auth).
			WithSummary("List batch runs, newest first").
			WithQueryParam("page", "int", "1-based page").
			WithQueryParam("page_size", "int", "runs per page").
			WithQueryParam("backend", "string", "filter by backend").
			WithResponseDTO(storex.Paginated[storex.Run]{}))

		v1.Get("/runs/:id", s.getRun)
		doc.AddEndpoint(docx.NewEndpoint("/v1/runs/:id", docx.GET).WithAuth(auth).
			WithSummary("Fetch one batch run").
			WithPathParam("id", "string", "run id").
			WithResponseDTO(storex.Run{}))
	}

	doc.RegisterWithFiber(s.app, "/docs")
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "backend": s.backend.Name()})
}

func (s *Server) backendInfo(c *fiber.Ctx) error {
	return c.JSON(s.info())
}

func (s *Server) extractOne(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return ErrRegistry.New(ErrNoImage).WithDetail("field", "image")
	}
	src, err := readUpload(fh)
	if err != nil {
		return err
	}
	opts, err := s.requestOptions(c)
	if err != nil {
		return err
	}

	res, err := s.backend.Extract(c.UserContext(), src, opts...)
	if err != nil {
		return err
	}
	return c.JSON(ExtractResponse{Text: res.Text, Record: res.Record, Usage: res.Usage})
}

func (s *Server) extractBatch(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return ErrRegistry.NewWithCause(ErrBadRequest, err)
	}
	files := form.File["images"]
	if len(files) == 0 {
		return ErrRegistry.New(ErrNoImage).WithDetail("field", "images")
	}

	// Unreadable uploads become failed items instead of failing the request.
	srcs := make([]imagex.Source, len(files))
	for i, fh := range files {
		src, err := readUpload(fh)
		if err != nil {
			src = imagex.Bytes(nil, fh.Filename)
		}
		srcs[i] = src
	}

	opts, err := s.requestOptions(c)
	if err != nil {
		return err
	}
	if s.bus != nil {
		opts = append(opts, ocr.WithEvents(s.bus))
	}

	started := time.Now()
	outcomes := s.backend.ExtractBatch(c.UserContext(), srcs, opts...)

	reports, failed := ocr.Summarize(outcomes)
	resp := BatchResponse{
		RunID:     uuid.NewString(),
		Succeeded: len(outcomes) - failed,
		Failed:    failed,
		Outcomes:  reports,
	}

	if s.store != nil {
		run := storex.NewRun(resp.RunID, s.backend.Name(), "", outcomes, started)
		if err := s.store.SaveRun(c.UserContext(), run); err != nil {
			s.log.Warn("Failed to save run %s: %v", resp.RunID, err)
		}
	}
	return c.JSON(resp)
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	page, err := s.store.ListRuns(c.UserContext(), storex.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 25),
		Backend:  c.Query("backend"),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (s *Server) getRun(c *fiber.Ctx) error {
	run, err := s.store.GetRun(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(run)
}

// requestOptions layers form parameters over the server defaults
func (s *Server) requestOptions(c *fiber.Ctx) ([]ocr.Option, error) {
	opts := append([]ocr.Option{}, s.extract...)
	if p := c.FormValue("prompt"); p != "" {
		opts = append(opts, ocr.WithPrompt(p))
	}
	if v := c.FormValue("structured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, ErrRegistry.NewWithMessage(ErrBadRequest, "structured must be a boolean").WithDetail("structured", v)
		}
		opts = append(opts, ocr.WithStructured(b))
	}
	for field, apply := range map[string]func(int) ocr.Option{
		"max_new_tokens": ocr.WithMaxNewTokens,
		"batch_size":     ocr.WithBatchSize,
	} {
		v := c.FormValue(field)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, ErrRegistry.NewWithMessage(ErrBadRequest, field+" must be an integer").WithDetail(field, v)
		}
		opts = append(opts, apply(n))
	}
	return opts, nil
}

func readUpload(fh *multipart.FileHeader) (imagex.Source, error) {
	f, err := fh.Open()
	if err != nil {
		return imagex.Source{}, ErrRegistry.NewWithCause(ErrBadRequest, err).WithDetail("file", fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return imagex.Source{}, ErrRegistry.NewWithCause(ErrBadRequest, err).WithDetail("file", fh.Filename)
	}
	return imagex.Bytes(data, fh.Filename), nil
}
