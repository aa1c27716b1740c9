package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joelkehle/office-action-response/internal/apperr"
	"github.com/joelkehle/office-action-response/internal/assemble"
	"github.com/joelkehle/office-action-response/internal/service"
)

func (s *Server) handleCreateApplication(c *gin.Context) {
	var meta service.ApplicationMeta
	if err := bindJSON(c, &meta); err != nil {
		s.writeError(c, err)
		return
	}
	app, err := s.svc.CreateApplication(c.Request.Context(), identity(c), meta)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "application": app})
}

func (s *Server) handleListApplications(c *gin.Context) {
	apps, err := s.svc.ListApplications(c.Request.Context(), identity(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "applications": apps})
}

func (s *Server) handleGetApplication(c *gin.Context) {
	app, err := s.svc.GetApplication(c.Request.Context(), identity(c), c.Param("appID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "application": app})
}

// handleIngestOfficeAction accepts either a JSON text body or a multipart
// upload in field "file".
func (s *Server) handleIngestOfficeAction(c *gin.Context) {
	ctx := c.Request.Context()
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			s.writeError(c, apperr.Validation("multipart field \"file\" is required"))
			return
		}
		if fh.Size > maxUploadBytes {
			s.writeError(c, apperr.Validation("office action document exceeds %d bytes", maxUploadBytes))
			return
		}
		f, err := fh.Open()
		if err != nil {
			s.writeError(c, apperr.Validation("could not open upload: %v", err))
			return
		}
		defer f.Close()
		blob, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			s.writeError(c, apperr.Validation("could not read upload: %v", err))
			return
		}
		app, err := s.svc.IngestOfficeActionDocument(ctx, identity(c), c.Param("appID"), blob)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "application": app})
		return
	}
	var req textRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	app, err := s.svc.IngestOfficeAction(ctx, identity(c), c.Param("appID"), req.Text)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "application": app})
}

func (s *Server) handleImportOfficeAction(c *gin.Context) {
	app, err := s.svc.ImportOfficeAction(c.Request.Context(), identity(c), c.Param("appID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "application": app})
}

func (s *Server) handleIngestClaims(c *gin.Context) {
	var req textRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	app, err := s.svc.IngestClaims(c.Request.Context(), identity(c), c.Param("appID"), req.Text)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "application": app})
}

func (s *Server) handleIngestDescription(c *gin.Context) {
	var req textRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	app, err := s.svc.IngestDescription(c.Request.Context(), identity(c), c.Param("appID"), req.Text)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "application": app})
}

func (s *Server) handleIngestPriorArt(c *gin.Context) {
	app, err := s.svc.IngestPriorArt(c.Request.Context(), identity(c), c.Param("appID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "application": app})
}

func (s *Server) handleCreateDocket(c *gin.Context) {
	d, err := s.engine.CreateDocket(c.Request.Context(), identity(c), c.Param("appID"), rejectionID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "docket": d})
}

func (s *Server) handleRunStrategy(c *gin.Context) {
	kind, err := parseKind(c.Param("kind"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	res, err := s.engine.Run(c.Request.Context(), identity(c), c.Param("appID"), rejectionID(c), kind)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": res})
}

func (s *Server) handleSaveDraft(c *gin.Context) {
	var req strategyRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	kind, err := parseKind(req.Strategy)
	if err != nil {
		s.writeError(c, err)
		return
	}
	f, err := s.finalize.SaveDraft(c.Request.Context(), identity(c), c.Param("appID"), rejectionID(c), kind)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "amendment": f})
}

func (s *Server) handleFinalizeAmendment(c *gin.Context) {
	var req strategyRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	kind, err := parseKind(req.Strategy)
	if err != nil {
		s.writeError(c, err)
		return
	}
	f, err := s.finalize.FinalizeAmendment(c.Request.Context(), identity(c), c.Param("appID"), rejectionID(c), kind)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "amendment": f})
}

func (s *Server) handleGenerateResponse(c *gin.Context) {
	r, err := s.engine.RespondOther(c.Request.Context(), identity(c), c.Param("appID"), rejectionID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "response": r})
}

func (s *Server) handleSaveResponse(c *gin.Context) {
	var req textRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	r, err := s.engine.SaveOtherResponse(c.Request.Context(), identity(c), c.Param("appID"), rejectionID(c), req.Text)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "response": r})
}

func (s *Server) handleFinalizeResponse(c *gin.Context) {
	r, err := s.finalize.FinalizeOtherResponse(c.Request.Context(), identity(c), c.Param("appID"), rejectionID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "response": r})
}

func (s *Server) handlePreview(c *gin.Context) {
	p, err := s.finalize.Preview(c.Request.Context(), identity(c), c.Param("appID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "preview": p})
}

func (s *Server) handleDocument(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format != "json" && format != "md" && format != "pdf" {
		s.writeError(c, apperr.Validation("format must be json, md or pdf"))
		return
	}
	ctx := c.Request.Context()
	doc, err := s.assembler.Build(ctx, identity(c), c.Param("appID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	switch format {
	case "md":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(assemble.RenderMarkdown(doc)))
	case "pdf":
		if s.pdf == nil {
			s.writeError(c, apperr.Validation("pdf rendering is not configured"))
			return
		}
		blob, err := s.pdf.Render(ctx, doc)
		if err != nil {
			s.writeError(c, apperr.Internal(err, "failed to render pdf"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="office-action-response-`+doc.ApplicationID+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", blob)
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true, "document": doc})
	}
}
