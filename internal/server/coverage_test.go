package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/harvestlab/knowledge-harvest/internal/coverage"
	"github.com/harvestlab/knowledge-harvest/internal/store"
)

func TestCoverageCalculateNoTree(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &store.Store{DB: db}
	handler := &CoverageHandler{Store: st, Calc: coverage.NewCalculator(st)}

	mock.ExpectQuery(`SELECT id, company_id, tree, created_at`).
		WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "tree", "created_at"}))

	req := httptest.NewRequest(http.MethodPost, "/api/coverage/calculate", strings.NewReader(`{"companyId":"co-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err = handler.calculate(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when company has no tree, got %v", err)
	}
}

func TestCoverageCalculateMissingCompanyID(t *testing.T) {
	e := echo.New()
	handler := &CoverageHandler{}

	req := httptest.NewRequest(http.MethodPost, "/api/coverage/calculate", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	err := handler.calculate(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestCoverageReadMock(t *testing.T) {
	e := echo.New()
	handler := &CoverageHandler{}

	req := httptest.NewRequest(http.MethodGet, "/api/coverage?mock=true", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.read(ctx); err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp struct {
		Topics []TopicCoverageResponse `json:"topics"`
		Totals store.CoverageTotals    `json:"totals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Topics) == 0 || resp.Totals.Topics != len(resp.Topics) {
		t.Fatalf("unexpected mock payload: %+v", resp)
	}
	for _, topic := range resp.Topics {
		if topic.CoveragePercent < 0 || topic.CoveragePercent > 100 {
			t.Fatalf("mock coverage out of range: %+v", topic)
		}
	}
}

func TestCoverageReadJoinsExcerpts(t *testing.T) {
	e := echo.New()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &CoverageHandler{Store: &store.Store{DB: db}}
	now := time.Now()

	mock.ExpectQuery(`SELECT company_id, topic_id, topic_name`).
		WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"company_id", "topic_id", "topic_name", "target_questions", "answered_questions",
			"coverage_percent", "confidence", "evidence_count", "next_questions", "last_evidence_at", "last_updated",
		}).AddRow("co-1", "safety", "Safety", 4, 2, 50, 0.7, 3, []byte(`["Q three","Q four"]`), now, now))
	mock.ExpectQuery(`SELECT id, company_id, topic_id, target_id`).
		WithArgs("co-1", "safety", 3).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "company_id", "topic_id", "target_id", "confidence", "excerpt", "atom_id", "qa_turn_id", "created_at",
		}).AddRow("ev-1", "co-1", "safety", "t1", 0.8, "Bleed the pressure first.", nil, nil, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "targets", "answered", "evidence", "mean"}).
			AddRow(1, 4, 2, 3, 50.0))

	req := httptest.NewRequest(http.MethodGet, "/api/coverage?companyId=co-1", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := handler.read(ctx); err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp struct {
		Topics []TopicCoverageResponse `json:"topics"`
		Totals store.CoverageTotals    `json:"totals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Topics) != 1 {
		t.Fatalf("expected one topic, got %d", len(resp.Topics))
	}
	topic := resp.Topics[0]
	if topic.CoveragePercent != 50 || len(topic.NextQuestions) != 2 {
		t.Fatalf("unexpected score row: %+v", topic)
	}
	if len(topic.Excerpts) != 1 || topic.Excerpts[0].Excerpt != "Bleed the pressure first." {
		t.Fatalf("unexpected excerpts: %+v", topic.Excerpts)
	}
	if resp.Totals.MeanCoverage != 50 {
		t.Fatalf("unexpected totals: %+v", resp.Totals)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
