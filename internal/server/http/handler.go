package http

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"reverc/internal/server/artifact"
	"reverc/internal/server/board"
	"reverc/internal/server/core"
	"reverc/internal/server/metrics"
	"reverc/internal/server/opponent"
	"reverc/internal/server/processor"
	"reverc/internal/server/service"
)

const (
	rateLimitRate     = 10 // req/sec
	defaultMaxUpload  = 1 << 20
	uploadFormField   = "file"
	sourceFileSuffix  = ".c"
	adminLoginPerMin  = 10
	defaultQueryLimit = 100
)

// Options tunes the HTTP surface
type Options struct {
	Dev            bool
	RateLimit      int // req/sec per client, 0 uses the default
	MaxUploadBytes int
	Logger         *zerolog.Logger
}

// HTTPHandler handles HTTP requests and routes them to the processor
type HTTPHandler struct {
	proc      *processor.Processor
	svc       *service.Service
	opp       *opponent.Registry
	logger    zerolog.Logger
	maxUpload int
}

func NewHTTPHandler(proc *processor.Processor, svc *service.Service, opp *opponent.Registry, opts Options) *HTTPHandler {
	l := zerolog.Nop()
	if opts.Logger != nil {
		l = opts.Logger.With().Str("component", "http").Logger()
	}
	if opp == nil {
		opp = opponent.NewRegistry(opts.Logger)
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &HTTPHandler{proc: proc, svc: svc, opp: opp, logger: l, maxUpload: maxUpload}
}

func NewFiberApp(proc *processor.Processor, svc *service.Service, opp *opponent.Registry, opts Options) *fiber.App {
	h := NewHTTPHandler(proc, svc, opp, opts)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    h.maxUpload + 64<<10, // multipart framing on top of the source
		ReadTimeout:  15 * time.Second,
		// admin archive compiles and screens inline
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	})

	// Global middleware (order matters)
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
		Output: h.logger,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// No rate limit
	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	maxReq := opts.RateLimit
	if maxReq <= 0 {
		maxReq = rateLimitRate
		if opts.Dev {
			maxReq = rateLimitRate * 2
		}
	}
	api.Use(limiter.New(limiter.Config{
		Max:        maxReq,
		Expiration: 1 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if xff := c.Get("X-Forwarded-For"); xff != "" {
				if idx := strings.Index(xff, ","); idx != -1 {
					return strings.TrimSpace(xff[:idx])
				}
				return xff
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			metrics.RateLimitHits.Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
				Details: fmt.Sprintf("%d requests per second allowed", maxReq),
			})
		},
	}))

	api.Use(contentTypeValidator)
	api.Use(validationMiddleware)

	// Artifact pipeline
	api.Post("/upload/:class", h.Upload)
	api.Get("/status/archive/:group/:id", h.GetArchiveStatus)
	api.Get("/status/:class/:id", h.GetStatus)
	api.Delete("/cleanup/:class/:id/code", h.CleanupCode)
	api.Delete("/cleanup/:class/:id", h.Cleanup)
	api.Get("/archive/:group/:id", h.ArchiveExists)

	// Live play
	api.Post("/move/custom/:class/:id", h.MoveCustom)
	api.Post("/move/archive/:group/:id", h.MoveArchive)
	api.Post("/move/ai/:aiId", h.MoveAI)

	// Match glue
	api.Post("/setup", h.SaveSetup)
	api.Get("/setup/:matchId", h.GetSetup)
	api.Get("/stats", h.GetStats)
	api.Post("/stats/increment", h.IncrementStats)

	// Admin curation
	admin := api.Group("/admin")
	admin.Post("/login", limiter.New(limiter.Config{
		Max:        adminLoginPerMin,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			metrics.RateLimitHits.Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(core.ErrorResponse{
				Error:   "rate limit exceeded",
				Code:    core.ErrRateLimitExceeded,
				Details: fmt.Sprintf("%d login attempts per minute allowed", adminLoginPerMin),
			})
		},
	}), h.AdminLogin)

	validateToken := svc.ValidateToken
	admin.Post("/archive/:group/:id", AuthRequired(validateToken), h.StoreArchive)
	admin.Get("/invocations", AuthRequired(validateToken), h.ListInvocations)

	return app
}

// customErrorHandler provides consistent error responses
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	response := core.ErrorResponse{
		Error: "internal server error",
		Code:  core.ErrInternalError,
	}

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		response.Error = e.Message

		switch code {
		case fiber.StatusNotFound:
			response.Code = core.ErrNotFound
		case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusMethodNotAllowed:
			response.Code = core.ErrInvalidRequest
		case fiber.StatusTooManyRequests:
			response.Code = core.ErrRateLimitExceeded
		}
	}

	return c.Status(code).JSON(response)
}

// httpStatus maps an error code onto the response status
func httpStatus(code string) int {
	switch code {
	case core.ErrNotFound:
		return fiber.StatusNotFound
	case core.ErrInvalidRequest, core.ErrValidationFailed:
		return fiber.StatusBadRequest
	case core.ErrNotReady:
		return fiber.StatusConflict
	case core.ErrQueueFull, core.ErrStorageDisabled:
		return fiber.StatusServiceUnavailable
	case core.ErrUnauthorized:
		return fiber.StatusUnauthorized
	case core.ErrRateLimitExceeded:
		return fiber.StatusTooManyRequests
	case core.ErrInvalidContent:
		return fiber.StatusUnsupportedMediaType
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, e *core.ErrorResponse) error {
	return c.Status(httpStatus(e.Code)).JSON(e)
}

func badRequest(c *fiber.Ctx, msg, details string) error {
	return fail(c, &core.ErrorResponse{Error: msg, Code: core.ErrInvalidRequest, Details: details})
}

// Health check endpoint with storage status
func (h *HTTPHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"time":    time.Now().Unix(),
		"storage": h.svc.GetStorageHealth(),
		"queue":   h.proc.QueueLen(),
	})
}

// Upload accepts a multipart "file" ending in .c or a raw body and
// answers as soon as the pipeline is queued
func (h *HTTPHandler) Upload(c *fiber.Ctx) error {
	class, err := core.ParseClass(c.Params("class"))
	if err != nil {
		return badRequest(c, "invalid class", err.Error())
	}

	src, errResp := h.readSource(c)
	if errResp != nil {
		return fail(c, errResp)
	}

	resp := h.proc.Execute(c.UserContext(), processor.NewUploadCommand(class, src))
	if !resp.Success {
		return fail(c, resp.Error)
	}
	return c.Status(fiber.StatusCreated).JSON(resp.Data)
}

// GetStatus reports the pipeline state of a candidate or cache artifact
func (h *HTTPHandler) GetStatus(c *fiber.Ctx) error {
	ref, err := classRef(c)
	if err != nil {
		return badRequest(c, "invalid artifact", err.Error())
	}
	return h.status(c, ref)
}

func (h *HTTPHandler) GetArchiveStatus(c *fiber.Ctx) error {
	return h.status(c, artifact.ArchiveRef(c.Params("group"), c.Params("id")))
}

func (h *HTTPHandler) status(c *fiber.Ctx, ref artifact.Ref) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewGetStatusCommand(ref))
	if !resp.Success {
		return fail(c, resp.Error)
	}
	return c.JSON(resp.Data)
}

// Cleanup removes source, binary and status
func (h *HTTPHandler) Cleanup(c *fiber.Ctx) error {
	return h.cleanup(c, false)
}

// CleanupCode removes only the source
func (h *HTTPHandler) CleanupCode(c *fiber.Ctx) error {
	return h.cleanup(c, true)
}

func (h *HTTPHandler) cleanup(c *fiber.Ctx, codeOnly bool) error {
	ref, err := classRef(c)
	if err != nil {
		return badRequest(c, "invalid artifact", err.Error())
	}
	resp := h.proc.Execute(c.UserContext(), processor.NewCleanupCommand(ref, codeOnly))
	if !resp.Success {
		return fail(c, resp.Error)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ArchiveExists answers 200 when the curated artifact has a binary
func (h *HTTPHandler) ArchiveExists(c *fiber.Ctx) error {
	resp := h.proc.Execute(c.UserContext(), processor.NewArchiveExistsCommand(c.Params("group"), c.Params("id")))
	if !resp.Success {
		return fail(c, resp.Error)
	}
	return c.JSON(resp.Data)
}

// MoveCustom plays an uploaded candidate or cache artifact
func (h *HTTPHandler) MoveCustom(c *fiber.Ctx) error {
	ref, err := classRef(c)
	if err != nil {
		return badRequest(c, "invalid artifact", err.Error())
	}
	return h.move(c, ref)
}

// MoveArchive plays a curated artifact
func (h *HTTPHandler) MoveArchive(c *fiber.Ctx) error {
	return h.move(c, artifact.ArchiveRef(c.Params("group"), c.Params("id")))
}

func (h *HTTPHandler) move(c *fiber.Ctx, ref artifact.Ref) error {
	req, errResp := validatedBody[core.MoveRequest](c)
	if errResp != nil {
		return fail(c, errResp)
	}

	b, err := board.Parse(req.Board, req.Size)
	if err != nil {
		return badRequest(c, "invalid board", err.Error())
	}
	turn, err := board.ParseTurn(req.Turn)
	if err != nil {
		return badRequest(c, "invalid turn", err.Error())
	}

	resp := h.proc.Execute(c.UserContext(), processor.NewMoveCommand(ref, b, turn))
	if !resp.Success {
		return fail(c, resp.Error)
	}
	return c.JSON(resp.Data)
}

// MoveAI asks a language-model player; unknown ids fall back to a random
// available move like any other model failure
func (h *HTTPHandler) MoveAI(c *fiber.Ctx) error {
	req, errResp := validatedBody[core.AIMoveRequest](c)
	if errResp != nil {
		return fail(c, errResp)
	}

	oreq := opponent.Request{
		Board:     req.Board,
		Turn:      req.Turn,
		Size:      req.Size,
		Available: make([]board.Move, 0, len(req.AvailableMoves)),
	}
	for _, m := range req.AvailableMoves {
		oreq.Available = append(oreq.Available, board.Move{Row: m.Row, Col: m.Col})
	}
	if req.LastMove != nil {
		oreq.LastMove = &board.Move{Row: req.LastMove.Row, Col: req.LastMove.Col}
	}

	d, err := h.opp.Decide(c.UserContext(), c.Params("aiId"), oreq)
	if err != nil {
		return badRequest(c, err.Error(), "")
	}
	return c.JSON(core.AIMoveResponse{Row: d.Row, Col: d.Col, Explanation: d.Explanation})
}

// classRef builds a non-archive ref from :class and :id
func classRef(c *fiber.Ctx) (artifact.Ref, error) {
	class, err := core.ParseClass(c.Params("class"))
	if err != nil {
		return artifact.Ref{}, err
	}
	if class == core.ClassArchive {
		return artifact.Ref{}, fmt.Errorf("archive artifacts are addressed by group")
	}
	return artifact.NewRef(class, c.Params("id")), nil
}

// readSource returns a private copy of the uploaded source
func (h *HTTPHandler) readSource(c *fiber.Ctx) ([]byte, *core.ErrorResponse) {
	var src []byte

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fh, err := c.FormFile(uploadFormField)
		if err != nil {
			return nil, &core.ErrorResponse{Error: "missing file", Code: core.ErrInvalidRequest, Details: err.Error()}
		}
		if !strings.HasSuffix(fh.Filename, sourceFileSuffix) {
			return nil, &core.ErrorResponse{
				Error:   "invalid file type",
				Code:    core.ErrInvalidRequest,
				Details: "only .c files are allowed",
			}
		}
		if fh.Size > int64(h.maxUpload) {
			return nil, tooLarge(h.maxUpload)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, &core.ErrorResponse{Error: "unreadable file", Code: core.ErrInvalidRequest, Details: err.Error()}
		}
		defer f.Close()
		src = make([]byte, fh.Size)
		if _, err := io.ReadFull(f, src); err != nil {
			return nil, &core.ErrorResponse{Error: "unreadable file", Code: core.ErrInvalidRequest, Details: err.Error()}
		}
	} else {
		// fasthttp reuses the body buffer after the handler returns
		src = append([]byte(nil), c.Body()...)
	}

	if len(src) == 0 {
		return nil, &core.ErrorResponse{Error: "empty source", Code: core.ErrInvalidRequest}
	}
	if len(src) > h.maxUpload {
		return nil, tooLarge(h.maxUpload)
	}
	return src, nil
}

func tooLarge(limit int) *core.ErrorResponse {
	return &core.ErrorResponse{
		Error:   "source too large",
		Code:    core.ErrInvalidRequest,
		Details: fmt.Sprintf("at most %d bytes allowed", limit),
	}
}
