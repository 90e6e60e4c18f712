package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/harvestlab/knowledge-harvest/internal/search"
)

type KnowledgeHandler struct {
	Searcher *search.Searcher
}

func (h *KnowledgeHandler) Register(g *echo.Group) {
	g.GET("/search", h.search)
}

func (h *KnowledgeHandler) search(c echo.Context) error {
	companyID := c.QueryParam("companyId")
	query := c.QueryParam("q")
	if companyID == "" || query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "companyId and q required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	hits, err := h.Searcher.Search(c.Request().Context(), companyID, query, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"hits":  hits,
		"count": len(hits),
	})
}
