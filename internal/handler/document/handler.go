package document

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jwalitptl/kiosk-api/internal/backend"
	"github.com/jwalitptl/kiosk-api/internal/repository"
	"github.com/jwalitptl/kiosk-api/pkg/errors"
)

// Handler proxies invoice and prescription PDFs from the clinic backend.
type Handler struct {
	source repository.DocumentSource
}

func NewHandler(source repository.DocumentSource) *Handler {
	return &Handler{source: source}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/documents/:kind/:id", h.GetDocument)
}

func (h *Handler) GetDocument(c *gin.Context) {
	kind := backend.DocumentKind(c.Param("kind"))
	if !kind.Valid() {
		_ = c.Error(errors.NotFound("document kind", nil))
		return
	}
	id := c.Param("id")

	doc, err := h.source.Document(c.Request.Context(), kind, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s-%s.pdf"`, kind, id))
	c.Data(http.StatusOK, contentType, doc.Body)
}
