// Package httpapi exposes the response pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/joelkehle/office-action-response/internal/apperr"
	"github.com/joelkehle/office-action-response/internal/assemble"
	"github.com/joelkehle/office-action-response/internal/finalize"
	oa "github.com/joelkehle/office-action-response/internal/officeaction"
	"github.com/joelkehle/office-action-response/internal/service"
	"github.com/joelkehle/office-action-response/internal/strategy"
)

const (
	// IdentityHeader carries the caller's opaque user id.
	IdentityHeader = "X-User-ID"
	identityKey    = "identity"
	maxUploadBytes = 25 << 20
)

type PDFRenderer interface {
	Render(ctx context.Context, doc *assemble.Document) ([]byte, error)
}

type Deps struct {
	Service   *service.Service
	Engine    *strategy.Engine
	Finalize  *finalize.Controller
	Assembler *assemble.Assembler
	PDF       PDFRenderer
	Log       *zap.Logger
	// DevMode logs full error detail.
	DevMode bool
}

type Server struct {
	svc       *service.Service
	engine    *strategy.Engine
	finalize  *finalize.Controller
	assembler *assemble.Assembler
	pdf       PDFRenderer
	log       *zap.Logger
	devMode   bool
}

func NewServer(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	s := &Server{
		svc:       d.Service,
		engine:    d.Engine,
		finalize:  d.Finalize,
		assembler: d.Assembler,
		pdf:       d.PDF,
		log:       d.Log,
		devMode:   d.DevMode,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())
	r.GET("/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	v1 := r.Group("/v1", requireIdentity(s))
	v1.POST("/applications", s.handleCreateApplication)
	v1.GET("/applications", s.handleListApplications)

	app := v1.Group("/applications/:appID")
	app.GET("", s.handleGetApplication)
	app.POST("/office-action", s.handleIngestOfficeAction)
	app.POST("/office-action/import", s.handleImportOfficeAction)
	app.POST("/claims", s.handleIngestClaims)
	app.POST("/description", s.handleIngestDescription)
	app.POST("/prior-art", s.handleIngestPriorArt)
	app.GET("/preview", s.handlePreview)
	app.GET("/document", s.handleDocument)

	rej := app.Group("/rejections/:rejectionID")
	rej.POST("/docket", s.handleCreateDocket)
	rej.POST("/strategies/:kind", s.handleRunStrategy)
	rej.POST("/amendment/draft", s.handleSaveDraft)
	rej.POST("/amendment/finalize", s.handleFinalizeAmendment)
	rej.POST("/response/generate", s.handleGenerateResponse)
	rej.PUT("/response", s.handleSaveResponse)
	rej.POST("/response/finalize", s.handleFinalizeResponse)
	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := otel.Tracer("httpapi").Start(ctx, c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		}
		if sc := span.SpanContext(); sc.HasTraceID() {
			fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
		}
		s.log.Info("http_request", fields...)
	}
}

func requireIdentity(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(IdentityHeader))
		if id == "" {
			s.writeError(c, apperr.Unauthorized("missing "+IdentityHeader+" header"))
			c.Abort()
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func identity(c *gin.Context) string { return c.GetString(identityKey) }

func rejectionID(c *gin.Context) oa.RejectionID { return oa.RejectionID(c.Param("rejectionID")) }

// writeError is the only place errors become responses.
func (s *Server) writeError(c *gin.Context, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Internal(err, "internal error")
	}
	fields := []zap.Field{
		zap.String("route", c.FullPath()),
		zap.String("code", ae.Code),
		zap.String("reason", ae.Reason),
		zap.Int("status", ae.Status),
	}
	if s.devMode {
		s.log.Error("request_failed", append(fields, zap.Error(err))...)
	} else if ae.Status >= 500 {
		s.log.Error("request_failed", fields...)
	}
	message := ae.Message
	if ae.Sanitized() {
		message = sanitizedMessage(ae)
	}
	c.JSON(ae.Status, gin.H{
		"ok": false,
		"error": gin.H{
			"code":    ae.Code,
			"reason":  ae.Reason,
			"message": message,
		},
	})
}

// sanitizedMessage never includes the wrapped cause.
func sanitizedMessage(ae *apperr.Error) string {
	switch ae.Code {
	case apperr.CodeUpstream:
		if ae.Message != "" {
			return ae.Message
		}
		return "an upstream service is unavailable, please try again"
	case apperr.CodeIntegrity:
		return "stored records are inconsistent; the document cannot be assembled"
	default:
		return "internal error"
	}
}

type textRequest struct {
	Text string `json:"text"`
}

type strategyRequest struct {
	Strategy string `json:"strategy"`
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid json: %v", err)
	}
	return nil
}

func parseKind(raw string) (oa.StrategyKind, error) {
	kind, ok := oa.ParseStrategyKind(strings.TrimSpace(raw))
	if !ok {
		return "", apperr.Validation("unknown strategy %q", raw)
	}
	return kind, nil
}
