package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Company is the tenant unit every tree, session and score hangs off.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) CreateCompany(ctx context.Context, name string) (Company, error) {
	if strings.TrimSpace(name) == "" {
		return Company{}, fmt.Errorf("company name required")
	}
	var c Company
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO companies (name)
VALUES ($1)
RETURNING id, name, created_at
`, name).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		return Company{}, fmt.Errorf("create company: %w", err)
	}
	return c, nil
}

func (s *Store) GetCompany(ctx context.Context, id string) (Company, bool, error) {
	var c Company
	err := s.DB.QueryRowContext(ctx, `
SELECT id, name, created_at FROM companies WHERE id=$1
`, id).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Company{}, false, nil
		}
		return Company{}, false, fmt.Errorf("get company: %w", err)
	}
	return c, true, nil
}

func (s *Store) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, name, created_at FROM companies ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()
	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResetCompanyData removes all extracted knowledge, evidence, coverage
// scores and sessions for a company. Topic trees and the company row are
// kept so a fresh interview round can start from the same map.
func (s *Store) ResetCompanyData(ctx context.Context, companyID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmts := []string{
		`DELETE FROM coverage_scores WHERE company_id=$1`,
		`DELETE FROM coverage_evidence WHERE company_id=$1`,
		`DELETE FROM knowledge_atoms WHERE session_id IN (SELECT id FROM interview_sessions WHERE company_id=$1)`,
		`DELETE FROM qa_turns WHERE session_id IN (SELECT id FROM interview_sessions WHERE company_id=$1)`,
		`DELETE FROM interview_sessions WHERE company_id=$1`,
	}
	for _, q := range stmts {
		if _, err = tx.ExecContext(ctx, q, companyID); err != nil {
			return fmt.Errorf("reset company data: %w", err)
		}
	}
	return tx.Commit()
}
