package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/harvestlab/knowledge-harvest/internal/docgen"
)

const pdfRenderTimeout = 30 * time.Second

// DocsHandler serves the assembled runbook as nested JSON sections.
type DocsHandler struct {
	Assembler *docgen.Assembler
}

func (h *DocsHandler) Register(g *echo.Group) {
	g.GET("/:id", h.get)
}

// get assembles the company's document. Any resolution failure falls
// back to the static mock document, matching the demo flow.
func (h *DocsHandler) get(c echo.Context) error {
	id := c.Param("id")
	if id == "mock" {
		return c.JSON(http.StatusOK, docgen.MockDocument())
	}
	doc, err := h.Assembler.BuildForCompany(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, docgen.ErrNoDocument) {
			return c.JSON(http.StatusOK, docgen.MockDocument())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, doc)
}

// ExportHandler renders the assembled document to a downloadable HTML
// page or PDF.
type ExportHandler struct {
	Assembler  *docgen.Assembler
	ChromePath string
}

func (h *ExportHandler) Register(g *echo.Group) {
	g.POST("/docs", h.export)
}

func (h *ExportHandler) export(c echo.Context) error {
	var req struct {
		CompanyID string `json:"companyId"`
		Format    string `json:"format"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Format == "" {
		req.Format = "html"
	}
	if req.Format != "html" && req.Format != "pdf" {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unsupported format %q", req.Format))
	}

	doc, err := h.Assembler.BuildForCompany(c.Request().Context(), req.CompanyID)
	if err != nil {
		if errors.Is(err, docgen.ErrNoDocument) {
			doc = docgen.MockDocument()
		} else {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	page := docgen.RenderHTML(doc)
	docExports.WithLabelValues(req.Format).Inc()

	if req.Format == "pdf" {
		pdf, err := docgen.RenderPDF(c.Request().Context(), page, h.ChromePath, pdfRenderTimeout)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="knowledge-harvest.pdf"`)
		return c.Blob(http.StatusOK, "application/pdf", pdf)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="knowledge-harvest.html"`)
	return c.Blob(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, []byte(page))
}
