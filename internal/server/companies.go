package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/harvestlab/knowledge-harvest/internal/store"
)

type CompaniesHandler struct {
	Store *store.Store
}

func (h *CompaniesHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/reset", h.reset)
	g.GET("/:id/topic-tree", h.topicTree)
	g.GET("/:id/sessions", h.sessions)
	g.GET("/:id/atoms", h.atoms)
}

func (h *CompaniesHandler) create(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	company, err := h.Store.CreateCompany(c.Request().Context(), req.Name)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, company)
}

func (h *CompaniesHandler) list(c echo.Context) error {
	items, err := h.Store.ListCompanies(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.Company{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CompaniesHandler) get(c echo.Context) error {
	company, ok, err := h.Store.GetCompany(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "company not found")
	}
	return c.JSON(http.StatusOK, company)
}

// reset wipes the company's captured knowledge (sessions, atoms, turns,
// evidence, scores) but keeps the company and its topic trees.
func (h *CompaniesHandler) reset(c echo.Context) error {
	companyID := c.Param("id")
	if _, ok, err := h.Store.GetCompany(c.Request().Context(), companyID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "company not found")
	}
	if err := h.Store.ResetCompanyData(c.Request().Context(), companyID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "reset"})
}

func (h *CompaniesHandler) topicTree(c echo.Context) error {
	rec, ok, err := h.Store.LatestTopicTree(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no topic tree for company")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *CompaniesHandler) sessions(c echo.Context) error {
	items, err := h.Store.ListSessionsByCompany(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.SessionRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CompaniesHandler) atoms(c echo.Context) error {
	items, err := h.Store.ListAtomsByCompany(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.KnowledgeAtomRecord{}
	}
	return c.JSON(http.StatusOK, items)
}
