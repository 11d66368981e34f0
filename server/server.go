// Package server exposes an OCR backend over HTTP.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/visionocr/ai/ocr"
	"github.com/Abraxas-365/visionocr/auth"
	"github.com/Abraxas-365/visionocr/errx"
	"github.com/Abraxas-365/visionocr/eventx"
	"github.com/Abraxas-365/visionocr/logx"
	"github.com/Abraxas-365/visionocr/storex"
	"github.com/gofiber/fiber/v2"
)

// Error registry for the HTTP API
var (
	ErrRegistry = errx.NewRegistry("API")

	ErrBadRequest = ErrRegistry.Register("BAD_REQUEST", errx.TypeBadRequest, 400, "Malformed request")
	ErrNoImage    = ErrRegistry.Register("NO_IMAGE", errx.TypeValidation, 400, "No image uploaded")
)

// Server serves one OCR backend
type Server struct {
	app     *fiber.App
	backend ocr.Backend
	store   storex.RunStore
	tokens  *auth.TokenService
	bus     eventx.EventBus
	log     *logx.Logger
	extract []ocr.Option
	info    func() any
}

type options struct {
	store        storex.RunStore
	tokens       *auth.TokenService
	bus          eventx.EventBus
	log          *logx.Logger
	extract      []ocr.Option
	info         func() any
	bodyLimit    int
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Option configures a Server
type Option func(*options)

// WithStore persists batch runs and enables the runs routes
func WithStore(s storex.RunStore) Option { return func(o *options) { o.store = s } }

// WithTokens requires bearer tokens on /v1
func WithTokens(t *auth.TokenService) Option { return func(o *options) { o.tokens = t } }

// WithEvents publishes batch events on bus
func WithEvents(bus eventx.EventBus) Option { return func(o *options) { o.bus = bus } }

// WithLogger sets the logger
func WithLogger(l *logx.Logger) Option { return func(o *options) { o.log = l } }

// WithExtractOptions sets defaults applied before request parameters
func WithExtractOptions(opts ...ocr.Option) Option {
	return func(o *options) { o.extract = append(o.extract, opts...) }
}

// WithInfo sets what GET /v1/backend reports
func WithInfo(fn func() any) Option { return func(o *options) { o.info = fn } }

// WithLimits sets the body size limit in bytes and the I/O timeouts
func WithLimits(bodyLimit int, read, write time.Duration) Option {
	return func(o *options) {
		o.bodyLimit = bodyLimit
		o.readTimeout = read
		o.writeTimeout = write
	}
}

// New builds the fiber app and its routes
func New(backend ocr.Backend, opts ...Option) *Server {
	o := &options{bodyLimit: 32 << 20}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logx.Named("server")
	}
	if o.info == nil {
		o.info = func() any { return fiber.Map{"backend": backend.Name()} }
	}

	s := &Server{
		backend: backend,
		store:   o.store,
		tokens:  o.tokens,
		bus:     o.bus,
		log:     o.log,
		extract: o.extract,
		info:    o.info,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "visionocr",
		BodyLimit:             o.bodyLimit,
		ReadTimeout:           o.readTimeout,
		WriteTimeout:          o.writeTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	s.log.Info("Listening on %s (backend %s)", addr, s.backend.Name())
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	if e, ok := errx.As(err); ok {
		if e.HTTPStatus >= 500 {
			s.log.Error("%s %s: %s", c.Method(), c.Path(), errx.Print(err))
		}
		return e.ToFiber(c)
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"code": "HTTP", "message": fe.Message})
	}
	s.log.Error("%s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"code": "INTERNAL", "message": err.Error()})
}

func (s *Server) requestLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		if e, ok := errx.As(err); ok {
			status = e.HTTPStatus
		}
	}
	s.log.Debug("%s %s %d %s", c.Method(), c.Path(), status, time.Since(start))
	return err
}
