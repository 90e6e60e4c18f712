package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// KnowledgeAtomRecord is a single extracted fact/procedure/tip tied to a
// topic and the interview session it came from. Append-only.
type KnowledgeAtomRecord struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	TopicID    string    `json:"topic_id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	SourceSpan string    `json:"source_span,omitempty"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// QATurnRecord is one question/answer exchange attributed to a topic.
// Append-only.
type QATurnRecord struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	TopicID      string    `json:"topic_id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Timestamp    time.Time `json:"timestamp"`
	SpeakerLabel string    `json:"speaker_label,omitempty"`
}

// EvidenceRecord links an answered target question (or a general topic
// mention) to its confidence and source rows. Append-only.
type EvidenceRecord struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"company_id"`
	TopicID    string    `json:"topic_id"`
	TargetID   string    `json:"target_id,omitempty"`
	Confidence float64   `json:"confidence"`
	Excerpt    string    `json:"excerpt,omitempty"`
	AtomID     string    `json:"atom_id,omitempty"`
	QATurnID   string    `json:"qa_turn_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Store) InsertKnowledgeAtom(ctx context.Context, rec KnowledgeAtomRecord) (KnowledgeAtomRecord, error) {
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO knowledge_atoms (session_id, topic_id, type, title, content, source_span, confidence)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id, created_at
`, rec.SessionID, rec.TopicID, rec.Type, rec.Title, rec.Content, nullableString(rec.SourceSpan), rec.Confidence).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return KnowledgeAtomRecord{}, fmt.Errorf("insert knowledge atom: %w", err)
	}
	return rec, nil
}

func (s *Store) InsertQATurn(ctx context.Context, rec QATurnRecord) (QATurnRecord, error) {
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO qa_turns (session_id, topic_id, question, answer, ts, speaker_label)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, rec.SessionID, rec.TopicID, rec.Question, rec.Answer, rec.Timestamp, nullableString(rec.SpeakerLabel)).
		Scan(&rec.ID)
	if err != nil {
		return QATurnRecord{}, fmt.Errorf("insert qa turn: %w", err)
	}
	return rec, nil
}

func (s *Store) InsertEvidence(ctx context.Context, rec EvidenceRecord) (EvidenceRecord, error) {
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO coverage_evidence (company_id, topic_id, target_id, confidence, excerpt, atom_id, qa_turn_id)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id, created_at
`, rec.CompanyID, rec.TopicID, nullableString(rec.TargetID), rec.Confidence, nullableString(rec.Excerpt),
		nullableString(rec.AtomID), nullableString(rec.QATurnID)).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return EvidenceRecord{}, fmt.Errorf("insert evidence: %w", err)
	}
	return rec, nil
}

// ListEvidenceByCompany returns every evidence row for a company in
// insertion order. The coverage calculator groups them by topic id.
func (s *Store) ListEvidenceByCompany(ctx context.Context, companyID string) ([]EvidenceRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, company_id, topic_id, target_id, confidence, excerpt, atom_id, qa_turn_id, created_at
FROM coverage_evidence
WHERE company_id=$1
ORDER BY created_at ASC
`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()
	var out []EvidenceRecord
	for rows.Next() {
		rec, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListRecentEvidenceByTopic returns the newest evidence rows for one topic,
// used by the dashboard read path to show excerpts next to scores.
func (s *Store) ListRecentEvidenceByTopic(ctx context.Context, companyID, topicID string, limit int) ([]EvidenceRecord, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, company_id, topic_id, target_id, confidence, excerpt, atom_id, qa_turn_id, created_at
FROM coverage_evidence
WHERE company_id=$1 AND topic_id=$2
ORDER BY created_at DESC
LIMIT $3
`, companyID, topicID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent evidence: %w", err)
	}
	defer rows.Close()
	var out []EvidenceRecord
	for rows.Next() {
		rec, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListAtomsByCompany returns every knowledge atom whose owning session
// belongs to the company, via the session join.
func (s *Store) ListAtomsByCompany(ctx context.Context, companyID string) ([]KnowledgeAtomRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT a.id, a.session_id, a.topic_id, a.type, a.title, a.content, a.source_span, a.confidence, a.created_at
FROM knowledge_atoms a
JOIN interview_sessions s ON s.id = a.session_id
WHERE s.company_id=$1
ORDER BY a.created_at ASC
`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list atoms by company: %w", err)
	}
	defer rows.Close()
	var out []KnowledgeAtomRecord
	for rows.Next() {
		rec, err := scanAtom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListAtomsBySession(ctx context.Context, sessionID string) ([]KnowledgeAtomRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, topic_id, type, title, content, source_span, confidence, created_at
FROM knowledge_atoms
WHERE session_id=$1
ORDER BY created_at ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list atoms by session: %w", err)
	}
	defer rows.Close()
	var out []KnowledgeAtomRecord
	for rows.Next() {
		rec, err := scanAtom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListQATurnsBySession(ctx context.Context, sessionID string) ([]QATurnRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, topic_id, question, answer, ts, speaker_label
FROM qa_turns
WHERE session_id=$1
ORDER BY ts ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list qa turns: %w", err)
	}
	defer rows.Close()
	var out []QATurnRecord
	for rows.Next() {
		var rec QATurnRecord
		var speaker sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.TopicID, &rec.Question, &rec.Answer, &rec.Timestamp, &speaker); err != nil {
			return nil, err
		}
		if speaker.Valid {
			rec.SpeakerLabel = speaker.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanAtom(row rowScanner) (KnowledgeAtomRecord, error) {
	var rec KnowledgeAtomRecord
	var span sql.NullString
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.TopicID, &rec.Type, &rec.Title, &rec.Content, &span, &rec.Confidence, &rec.CreatedAt); err != nil {
		return KnowledgeAtomRecord{}, err
	}
	if span.Valid {
		rec.SourceSpan = span.String
	}
	return rec, nil
}

func scanEvidence(row rowScanner) (EvidenceRecord, error) {
	var rec EvidenceRecord
	var target, excerpt, atomID, turnID sql.NullString
	if err := row.Scan(&rec.ID, &rec.CompanyID, &rec.TopicID, &target, &rec.Confidence, &excerpt, &atomID, &turnID, &rec.CreatedAt); err != nil {
		return EvidenceRecord{}, err
	}
	if target.Valid {
		rec.TargetID = target.String
	}
	if excerpt.Valid {
		rec.Excerpt = excerpt.String
	}
	if atomID.Valid {
		rec.AtomID = atomID.String
	}
	if turnID.Valid {
		rec.QATurnID = turnID.String
	}
	return rec, nil
}
