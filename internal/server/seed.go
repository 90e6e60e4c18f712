package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/harvestlab/knowledge-harvest/internal/store"
	"github.com/harvestlab/knowledge-harvest/internal/topictree"
	"github.com/harvestlab/knowledge-harvest/provider"
)

// SeedHandler turns free-form seed notes into a validated topic tree.
type SeedHandler struct {
	Store *store.Store
	LLM   provider.Provider
}

func (h *SeedHandler) Register(g *echo.Group) {
	g.POST("", h.seed)
}

func (h *SeedHandler) seed(c echo.Context) error {
	var req struct {
		CompanyID string `json:"companyId"`
		Notes     string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil || req.CompanyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "companyId required")
	}
	ctx := c.Request().Context()
	company, ok, err := h.Store.GetCompany(ctx, req.CompanyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "company not found")
	}

	raw, err := h.LLM.GenerateTopicTree(ctx, company.Name, req.Notes)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	tree, err := topictree.Parse(raw)
	if err != nil {
		var malformed *topictree.MalformedError
		if errors.As(err, &malformed) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, malformed.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// Duplicate topic ids are rejected here, at creation time; the read
	// path tolerates them for trees persisted before this check existed.
	if err := tree.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	rec, err := h.Store.SaveTopicTree(ctx, req.CompanyID, raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":     rec.ID,
		"topics": tree.CountTopics(),
	})
}
