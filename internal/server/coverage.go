package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/harvestlab/knowledge-harvest/internal/coverage"
	"github.com/harvestlab/knowledge-harvest/internal/store"
)

// CoverageHandler exposes the recompute trigger and the dashboard read
// path. The read path never recomputes; it joins persisted scores with
// recent evidence excerpts.
type CoverageHandler struct {
	Store *store.Store
	Calc  *coverage.Calculator
}

// TopicCoverageResponse is one dashboard row: the persisted score plus
// the newest evidence excerpts for the topic.
type TopicCoverageResponse struct {
	store.CoverageScoreRecord
	Excerpts []EvidenceExcerpt `json:"excerpts"`
}

type EvidenceExcerpt struct {
	Excerpt    string    `json:"excerpt"`
	Confidence float64   `json:"confidence"`
	TargetID   string    `json:"target_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *CoverageHandler) Register(g *echo.Group) {
	g.POST("/calculate", h.calculate)
	g.GET("", h.read)
}

func (h *CoverageHandler) calculate(c echo.Context) error {
	var req struct {
		CompanyID string `json:"companyId"`
	}
	if err := c.Bind(&req); err != nil || req.CompanyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "companyId required")
	}
	scores, err := h.Calc.Recompute(c.Request().Context(), req.CompanyID)
	if err != nil {
		if errors.Is(err, coverage.ErrTreeNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no topic tree for company")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	coverageRecomputes.Inc()
	if scores == nil {
		scores = []store.CoverageScoreRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"topics": scores,
		"count":  len(scores),
	})
}

func (h *CoverageHandler) read(c echo.Context) error {
	if c.QueryParam("mock") == "true" {
		return c.JSON(http.StatusOK, mockCoverage())
	}
	companyID := c.QueryParam("companyId")
	if companyID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "companyId required")
	}
	ctx := c.Request().Context()
	scores, err := h.Store.ListCoverageScores(ctx, companyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]TopicCoverageResponse, 0, len(scores))
	for _, sc := range scores {
		row := TopicCoverageResponse{CoverageScoreRecord: sc, Excerpts: []EvidenceExcerpt{}}
		evid, err := h.Store.ListRecentEvidenceByTopic(ctx, companyID, sc.TopicID, 3)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		for _, ev := range evid {
			row.Excerpts = append(row.Excerpts, EvidenceExcerpt{
				Excerpt:    ev.Excerpt,
				Confidence: ev.Confidence,
				TargetID:   ev.TargetID,
				CreatedAt:  ev.CreatedAt,
			})
		}
		out = append(out, row)
	}
	totals, err := h.Store.CoverageTotals(ctx, companyID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"topics": out,
		"totals": totals,
	})
}

// mockCoverage is canned dashboard data for demos without a seeded
// company.
func mockCoverage() map[string]interface{} {
	now := time.Now().UTC()
	topics := []TopicCoverageResponse{
		{
			CoverageScoreRecord: store.CoverageScoreRecord{
				TopicID: "demo-safety", TopicName: "Safety Procedures",
				TargetQuestions: 4, AnsweredQuestions: 3, CoveragePercent: 75,
				Confidence: 0.82, EvidenceCount: 5,
				NextQuestions: []string{"What is the lockout procedure for the stamping press?"},
				LastUpdated:   now,
			},
			Excerpts: []EvidenceExcerpt{
				{Excerpt: "Always bleed hydraulic pressure before opening the access panel.", Confidence: 0.9, TargetID: "demo-safety-1", CreatedAt: now},
			},
		},
		{
			CoverageScoreRecord: store.CoverageScoreRecord{
				TopicID: "demo-maintenance", TopicName: "Preventive Maintenance",
				TargetQuestions: 3, AnsweredQuestions: 1, CoveragePercent: 33,
				Confidence: 0.64, EvidenceCount: 2,
				NextQuestions: []string{"How often are the conveyor belts inspected?", "Who signs off on completed maintenance tickets?"},
				LastUpdated:   now,
			},
			Excerpts: []EvidenceExcerpt{},
		},
	}
	return map[string]interface{}{
		"topics": topics,
		"totals": store.CoverageTotals{Topics: 2, TargetQuestions: 7, Answered: 4, EvidenceRows: 7, MeanCoverage: 54},
	}
}
