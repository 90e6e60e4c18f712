package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestReplaceCoverageScores(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scores := []CoverageScoreRecord{
		{
			TopicID:           "safety",
			TopicName:         "Plant Safety",
			TargetQuestions:   4,
			AnsweredQuestions: 2,
			CoveragePercent:   50,
			Confidence:        0.7667,
			EvidenceCount:     3,
			NextQuestions:     []string{"q3", "q4"},
			LastEvidenceAt:    &last,
		},
		{
			TopicID:   "maintenance",
			TopicName: "Maintenance",
		},
	}

	insertSQL := regexp.QuoteMeta(`
INSERT INTO coverage_scores
  (company_id, topic_id, topic_name, target_questions, answered_questions, coverage_percent, confidence, evidence_count, next_questions, last_evidence_at, ordinal, last_updated)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())
`)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM coverage_scores WHERE company_id=$1`)).
		WithArgs("co-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(insertSQL).
		WithArgs("co-1", "safety", "Plant Safety", 4, 2, 50, 0.7667, 3, []byte(`["q3","q4"]`), last, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertSQL).
		WithArgs("co-1", "maintenance", "Maintenance", 0, 0, 0, 0.0, 0, []byte(`null`), nil, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.ReplaceCoverageScores(context.Background(), "co-1", scores); err != nil {
		t.Fatalf("ReplaceCoverageScores: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceCoverageScoresRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM coverage_scores`).
		WithArgs("co-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO coverage_scores`).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err = st.ReplaceCoverageScores(context.Background(), "co-1", []CoverageScoreRecord{{TopicID: "a", TopicName: "A"}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListCoverageScores(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT company_id, topic_id, topic_name, target_questions, answered_questions, coverage_percent, confidence, evidence_count, next_questions, last_evidence_at, last_updated
FROM coverage_scores
WHERE company_id=$1
ORDER BY ordinal ASC
`)).
		WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"company_id", "topic_id", "topic_name", "target_questions", "answered_questions",
			"coverage_percent", "confidence", "evidence_count", "next_questions", "last_evidence_at", "last_updated",
		}).AddRow("co-1", "safety", "Plant Safety", 4, 2, 50, 0.7667, 3, []byte(`["q3"]`), now, now))

	out, err := st.ListCoverageScores(context.Background(), "co-1")
	if err != nil {
		t.Fatalf("ListCoverageScores: %v", err)
	}
	if len(out) != 1 || out[0].CoveragePercent != 50 || len(out[0].NextQuestions) != 1 {
		t.Fatalf("unexpected scores: %+v", out)
	}
	if out[0].LastEvidenceAt == nil {
		t.Fatalf("expected last_evidence_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
