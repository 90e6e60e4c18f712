package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CoverageScoreRecord is the derived per-topic coverage summary. Rows are
// a cache: every recompute deletes the company's set and inserts a fresh
// one, never merges.
type CoverageScoreRecord struct {
	CompanyID         string     `json:"company_id"`
	TopicID           string     `json:"topic_id"`
	TopicName         string     `json:"topic_name"`
	TargetQuestions   int        `json:"target_questions"`
	AnsweredQuestions int        `json:"answered_questions"`
	CoveragePercent   int        `json:"coverage_percent"`
	Confidence        float64    `json:"confidence"`
	EvidenceCount     int        `json:"evidence_count"`
	NextQuestions     []string   `json:"next_questions,omitempty"`
	LastEvidenceAt    *time.Time `json:"last_evidence_at,omitempty"`
	LastUpdated       time.Time  `json:"last_updated"`
}

// ReplaceCoverageScores swaps the company's score set in one transaction.
// A crash between delete and insert leaves the company with zero rows
// until the next successful run; acceptable for a derived cache.
func (s *Store) ReplaceCoverageScores(ctx context.Context, companyID string, scores []CoverageScoreRecord) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM coverage_scores WHERE company_id=$1`, companyID); err != nil {
		return fmt.Errorf("delete coverage scores: %w", err)
	}
	for i, sc := range scores {
		next, merr := json.Marshal(sc.NextQuestions)
		if merr != nil {
			err = merr
			return err
		}
		var lastEvidence interface{}
		if sc.LastEvidenceAt != nil {
			lastEvidence = sc.LastEvidenceAt.UTC()
		}
		// ordinal keeps the calculator's depth-first tree order for reads
		if _, err = tx.ExecContext(ctx, `
INSERT INTO coverage_scores
  (company_id, topic_id, topic_name, target_questions, answered_questions, coverage_percent, confidence, evidence_count, next_questions, last_evidence_at, ordinal, last_updated)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())
`, companyID, sc.TopicID, sc.TopicName, sc.TargetQuestions, sc.AnsweredQuestions, sc.CoveragePercent,
			sc.Confidence, sc.EvidenceCount, next, lastEvidence, i); err != nil {
			return fmt.Errorf("insert coverage score: %w", err)
		}
	}
	return tx.Commit()
}

// ListCoverageScores returns the company's current score set in the
// topic order implied by the last recompute.
func (s *Store) ListCoverageScores(ctx context.Context, companyID string) ([]CoverageScoreRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT company_id, topic_id, topic_name, target_questions, answered_questions, coverage_percent, confidence, evidence_count, next_questions, last_evidence_at, last_updated
FROM coverage_scores
WHERE company_id=$1
ORDER BY ordinal ASC
`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list coverage scores: %w", err)
	}
	defer rows.Close()
	var out []CoverageScoreRecord
	for rows.Next() {
		var rec CoverageScoreRecord
		var next []byte
		var lastEvidence sql.NullTime
		if err := rows.Scan(&rec.CompanyID, &rec.TopicID, &rec.TopicName, &rec.TargetQuestions, &rec.AnsweredQuestions,
			&rec.CoveragePercent, &rec.Confidence, &rec.EvidenceCount, &next, &lastEvidence, &rec.LastUpdated); err != nil {
			return nil, err
		}
		if len(next) > 0 {
			if err := json.Unmarshal(next, &rec.NextQuestions); err != nil {
				return nil, fmt.Errorf("decode next_questions: %w", err)
			}
		}
		if lastEvidence.Valid {
			t := lastEvidence.Time
			rec.LastEvidenceAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CoverageTotals aggregates the company's score set for dashboard counts.
type CoverageTotals struct {
	Topics          int     `json:"topics"`
	TargetQuestions int     `json:"target_questions"`
	Answered        int     `json:"answered_questions"`
	EvidenceRows    int     `json:"evidence_rows"`
	MeanCoverage    float64 `json:"mean_coverage"`
}

func (s *Store) CoverageTotals(ctx context.Context, companyID string) (CoverageTotals, error) {
	var t CoverageTotals
	var mean sql.NullFloat64
	err := s.DB.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(target_questions),0), COALESCE(SUM(answered_questions),0), COALESCE(SUM(evidence_count),0), AVG(coverage_percent)
FROM coverage_scores
WHERE company_id=$1
`, companyID).Scan(&t.Topics, &t.TargetQuestions, &t.Answered, &t.EvidenceRows, &mean)
	if err != nil {
		return CoverageTotals{}, fmt.Errorf("coverage totals: %w", err)
	}
	if mean.Valid {
		t.MeanCoverage = mean.Float64
	}
	return t, nil
}
