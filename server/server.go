// Package server exposes the pipeline over HTTP using fiber.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/engine"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/metrics"
	"github.com/hupe1980/accountplan/render"
)

const (
	// SessionCookie carries the session id between requests.
	SessionCookie = "session_id"
	// SessionHeader overrides the cookie for API clients.
	SessionHeader = "X-Session-ID"

	sessionLocal = "session_id"
)

// Pipeline is the subset of the engine the HTTP layer needs.
type Pipeline interface {
	HandleMessage(ctx context.Context, sessionID, text string) (engine.Reply, error)
	HandleAudio(ctx context.Context, sessionID string, audio []byte, mimeType string) (string, engine.Reply, error)
	Regenerate(ctx context.Context, sessionID, sectionID, instruction string) (engine.Regeneration, error)
	Progress(ctx context.Context, sessionID string) (engine.ProgressSnapshot, error)
	Report(ctx context.Context, sessionID string) (engine.Report, error)
	Export(ctx context.Context, sessionID string, format render.Format) (engine.Export, error)
}

// Options configures the HTTP server.
type Options struct {
	// CorsOrigins is a comma separated allow list; empty disables CORS.
	CorsOrigins string
	// BodyLimitMB bounds request bodies. Defaults to 10.
	BodyLimitMB int
	Logger      logging.Logger
}

// Server wires the HTTP routes to a Pipeline.
type Server struct {
	app      *fiber.App
	pipeline Pipeline
	logger   logging.Logger
	validate *validator.Validate
}

// New creates a Server with every route registered.
func New(p Pipeline, optFns ...func(o *Options)) *Server {
	opts := Options{BodyLimitMB: 10, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Server{
		pipeline: p,
		logger:   opts.Logger,
		validate: validator.New(),
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             opts.BodyLimitMB * 1024 * 1024,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
		// A confirmed workplan runs the whole research sweep in one request.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 15 * time.Minute,
	})
	app.Use(recover.New())
	if opts.CorsOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CorsOrigins,
			AllowCredentials: opts.CorsOrigins != "*",
			AllowHeaders:     "Origin, Content-Type, Accept, " + SessionHeader,
			AllowMethods:     "GET, POST, OPTIONS",
			ExposeHeaders:    "Content-Disposition, " + SessionHeader,
		}))
	}
	app.Use(s.instrument)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", s.session)
	api.Post("/chat", s.Chat)
	api.Post("/chat-audio", s.ChatAudio)
	api.Get("/progress", s.Progress)
	api.Get("/report", s.Report)
	api.Post("/regenerate-section", s.Regenerate)
	api.Get("/export", s.Export)

	s.app = app
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("Server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// session resolves the session id from the header or cookie, minting one on
// first contact.
func (s *Server) session(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Get(SessionHeader))
	if id == "" {
		id = c.Cookies(SessionCookie)
	}
	if id == "" {
		id = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	c.Locals(sessionLocal, id)
	c.Set(SessionHeader, id)
	return c.Next()
}

func sessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(sessionLocal).(string)
	return id
}

func (s *Server) instrument(c *fiber.Ctx) error {
	err := c.Next()
	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	} else if err != nil {
		status = fiber.StatusInternalServerError
	}
	metrics.HTTPRequestsTotal.WithLabelValues(c.Route().Path, strconv.Itoa(status)).Inc()
	return err
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, core.ErrInvalidSection), errors.Is(err, core.ErrPlanNotReady), errors.Is(err, engine.ErrEmptyMessage):
		code = fiber.StatusBadRequest
	case errors.Is(err, engine.ErrTranscriptionUnavailable):
		code = fiber.StatusNotImplemented
	case core.IsGenerationError(err):
		code = fiber.StatusBadGateway
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

func (s *Server) bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s is %s", strings.ToLower(verrs[0].Field()), verrs[0].Tag()))
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func (s *Server) Chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	id := sessionID(c)
	reply, err := s.pipeline.HandleMessage(c.UserContext(), id, req.Message)
	if err != nil {
		return err
	}
	snap, err := s.pipeline.Progress(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(newChatResponse(reply, snap))
}

func (s *Server) ChatAudio(c *fiber.Ctx) error {
	fh, err := c.FormFile("audio")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "audio file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "audio file is unreadable")
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "audio file is unreadable")
	}

	mimeType := c.FormValue("mime_type")
	if mimeType == "" {
		mimeType = fh.Header.Get(fiber.HeaderContentType)
	}

	id := sessionID(c)
	transcript, reply, err := s.pipeline.HandleAudio(c.UserContext(), id, audio, mimeType)
	if err != nil {
		return err
	}
	snap, err := s.pipeline.Progress(c.UserContext(), id)
	if err != nil {
		return err
	}
	resp := newChatResponse(reply, snap)
	resp.Transcript = transcript
	return c.JSON(resp)
}

func (s *Server) Progress(c *fiber.Ctx) error {
	snap, err := s.pipeline.Progress(c.UserContext(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(ProgressResponse{
		Stage:            snap.Stage,
		ProgressLog:      progressLines(snap),
		ResearchActivity: snap.Activity,
		LastError:        snap.LastError,
	})
}

func (s *Server) Report(c *fiber.Ctx) error {
	r, err := s.pipeline.Report(c.UserContext(), sessionID(c))
	if err != nil {
		return err
	}
	return c.JSON(newReportResponse(r))
}

func (s *Server) Regenerate(c *fiber.Ctx) error {
	var req RegenerateRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	res, err := s.pipeline.Regenerate(c.UserContext(), sessionID(c), req.Section, req.Instruction)
	if err != nil {
		return err
	}
	return c.JSON(RegenerateResponse{Section: res.Section, Content: res.Content, Version: res.Version, Busy: res.Busy})
}

func (s *Server) Export(c *fiber.Ctx) error {
	format, err := render.ParseFormat(c.Query("format"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	out, err := s.pipeline.Export(c.UserContext(), sessionID(c), format)
	if err != nil {
		return err
	}
	c.Attachment(out.FileName)
	c.Set(fiber.HeaderContentType, out.ContentType)
	return c.Send(out.Data)
}
