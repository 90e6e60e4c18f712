package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TopicTreeRecord is a versioned, serialized topic tree for a company.
// Latest row per company wins.
type TopicTreeRecord struct {
	ID        string          `json:"id"`
	CompanyID string          `json:"company_id"`
	Tree      json.RawMessage `json:"tree"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *Store) SaveTopicTree(ctx context.Context, companyID string, tree json.RawMessage) (TopicTreeRecord, error) {
	if len(tree) == 0 {
		return TopicTreeRecord{}, fmt.Errorf("tree payload required")
	}
	rec := TopicTreeRecord{CompanyID: companyID, Tree: tree}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO topic_trees (company_id, tree)
VALUES ($1,$2)
RETURNING id, created_at
`, companyID, []byte(tree)).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return TopicTreeRecord{}, fmt.Errorf("save topic tree: %w", err)
	}
	return rec, nil
}

// LatestTopicTree returns the most recently created tree for a company.
func (s *Store) LatestTopicTree(ctx context.Context, companyID string) (TopicTreeRecord, bool, error) {
	var rec TopicTreeRecord
	var tree []byte
	err := s.DB.QueryRowContext(ctx, `
SELECT id, company_id, tree, created_at
FROM topic_trees
WHERE company_id=$1
ORDER BY created_at DESC
LIMIT 1
`, companyID).Scan(&rec.ID, &rec.CompanyID, &tree, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TopicTreeRecord{}, false, nil
		}
		return TopicTreeRecord{}, false, fmt.Errorf("latest topic tree: %w", err)
	}
	rec.Tree = tree
	return rec, true, nil
}

func (s *Store) GetTopicTree(ctx context.Context, id string) (TopicTreeRecord, bool, error) {
	var rec TopicTreeRecord
	var tree []byte
	err := s.DB.QueryRowContext(ctx, `
SELECT id, company_id, tree, created_at FROM topic_trees WHERE id=$1
`, id).Scan(&rec.ID, &rec.CompanyID, &tree, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TopicTreeRecord{}, false, nil
		}
		return TopicTreeRecord{}, false, fmt.Errorf("get topic tree: %w", err)
	}
	rec.Tree = tree
	return rec, true, nil
}
