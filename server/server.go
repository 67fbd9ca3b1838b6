// Package server is the web front end of scriptloc: a single page that
// uploads a demo script and offers the localized DOCX for download, plus
// the JSON and file endpoints the page and scripts call.
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minios-linux/scriptloc/completion"
	"github.com/minios-linux/scriptloc/docx"
	"github.com/minios-linux/scriptloc/i18n"
	"github.com/minios-linux/scriptloc/localize"
)

// Localizer runs one localization. *localize.Pipeline satisfies it.
type Localizer interface {
	Run(ctx context.Context, req localize.Request) (*localize.Result, error)
}

// DefaultMaxUploadBytes caps uploads when Options leaves it unset.
const DefaultMaxUploadBytes = 10 << 20

// RequestIDHeader carries the per-run request id.
const RequestIDHeader = "X-Request-ID"

// Options controls the server.
type Options struct {
	// MaxUploadBytes caps the request body. Default: 10 MB.
	MaxUploadBytes int64
	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string
	// FilenameTemplate names the output document.
	FilenameTemplate string
	// AccessLog receives gin request logs (nil = disabled).
	AccessLog io.Writer
	// OnLog emits log messages.
	OnLog func(format string, args ...any)
	// OnError emits error messages.
	OnError func(format string, args ...any)
}

func (o *Options) effectiveMaxUploadBytes() int64 {
	if o.MaxUploadBytes > 0 {
		return o.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	}
}

// Server serves the localization page and API.
type Server struct {
	loc    Localizer
	opts   Options
	engine *gin.Engine
}

// New creates a server around loc.
func New(loc Localizer, opts Options) *Server {
	s := &Server{loc: loc, opts: opts}

	router := gin.New()
	router.Use(gin.Recovery())
	if opts.AccessLog != nil {
		router.Use(gin.LoggerWithWriter(opts.AccessLog))
	}
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST"},
			AllowHeaders:  []string{"Origin", "Content-Type", RequestIDHeader},
			ExposeHeaders: []string{"Content-Disposition", RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}
	router.Use(requestID())

	router.MaxMultipartMemory = opts.effectiveMaxUploadBytes()
	router.SetHTMLTemplate(template.Must(
		template.New("").Funcs(template.FuncMap{"T": i18n.T}).ParseFS(templates, "templates/*.html"),
	))

	router.GET("/", s.index)
	router.GET("/healthz", s.health)
	router.POST("/api/localize", s.localizeJSON)
	router.POST("/localize", s.localizeFile)

	s.engine = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Serve listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.opts.log("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) localizeJSON(c *gin.Context) {
	out, ok := s.run(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id":  c.GetString("request_id"),
		"text":        out.result.Text,
		"chunks":      out.result.Chunks,
		"duration_ms": out.result.Duration.Milliseconds(),
		"filename":    out.filename,
		"document":    base64.StdEncoding.EncodeToString(out.document),
	})
}

func (s *Server) localizeFile(c *gin.Context) {
	out, ok := s.run(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.filename))
	c.Data(http.StatusOK, docx.ContentType, out.document)
}

type output struct {
	result   *localize.Result
	filename string
	document []byte
}

// run reads the form, localizes it and builds the output document. On
// failure it writes the error response and returns false.
func (s *Server) run(c *gin.Context) (*output, bool) {
	id := c.GetString("request_id")

	req, err := s.readRequest(c)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}

	s.opts.log("[%s] localizing %d paragraph(s) into %s", id, len(req.Paragraphs), req.Language)
	res, err := s.loc.Run(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}

	doc, err := docx.Bytes(res.Text)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}

	s.opts.log("[%s] done: %d chunk(s) in %v", id, res.Chunks, res.Duration.Round(time.Millisecond))
	return &output{
		result:   res,
		filename: localize.OutputFilename(s.opts.FilenameTemplate, req.Language),
		document: doc,
	}, true
}

// errTooLarge marks an upload over the size limit.
var errTooLarge = errors.New("upload too large")

func (s *Server) readRequest(c *gin.Context) (localize.Request, error) {
	limit := s.opts.effectiveMaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			return localize.Request{}, fmt.Errorf("%w: limit is %d MB", errTooLarge, limit>>20)
		}
		return localize.Request{}, fmt.Errorf("%w: %s", localize.ErrInvalidRequest, i18n.T("a DOCX file is required"))
	}

	f, err := fh.Open()
	if err != nil {
		return localize.Request{}, fmt.Errorf("%w: %v", localize.ErrInvalidRequest, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return localize.Request{}, fmt.Errorf("%w: %v", localize.ErrInvalidRequest, err)
	}
	doc, err := docx.ReadBytes(data)
	if err != nil {
		return localize.Request{}, err
	}

	req := localize.Request{
		Paragraphs: doc.Paragraphs,
		Language:   strings.TrimSpace(c.PostForm("language")),
		Country:    strings.TrimSpace(c.PostForm("country")),
		Name:       strings.TrimSpace(c.PostForm("name")),
	}
	return req, req.Validate()
}

// statusFor maps an error to the HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, "upload_too_large"
	case errors.Is(err, localize.ErrInvalidRequest), errors.Is(err, docx.ErrInvalidDocument):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, "canceled"
	case errors.Is(err, completion.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, completion.ErrRemote):
		return http.StatusBadGateway, "completion_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	id := c.GetString("request_id")
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		s.opts.logError("[%s] %v", id, err)
	} else {
		s.opts.log("[%s] rejected: %v", id, err)
	}

	body := gin.H{
		"request_id": id,
		"error":      code,
		"message":    err.Error(),
	}
	var ce *localize.ChunkError
	if errors.As(err, &ce) {
		body["chunk"] = ce.Index + 1
		body["total"] = ce.Total
	}
	c.AbortWithStatusJSON(status, body)
}
