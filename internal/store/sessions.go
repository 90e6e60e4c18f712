package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SessionRecord is one AI-guided interview. It is mutated once at
// end-of-session; autosave only refreshes the transcript snapshot.
type SessionRecord struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	TopicTreeID string          `json:"topic_tree_id,omitempty"`
	SpeakerName string          `json:"speaker_name,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
	AudioURL    string          `json:"audio_url,omitempty"`
	Transcript  json.RawMessage `json:"transcript,omitempty"`
	Status      string          `json:"status"`
}

func (s *Store) CreateSession(ctx context.Context, companyID, topicTreeID, speakerName string) (SessionRecord, error) {
	rec := SessionRecord{CompanyID: companyID, TopicTreeID: topicTreeID, SpeakerName: speakerName, Status: SessionStatusActive}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO interview_sessions (company_id, topic_tree_id, speaker_name, status)
VALUES ($1,$2,$3,$4)
RETURNING id, started_at
`, companyID, nullableString(topicTreeID), nullableString(speakerName), SessionStatusActive).Scan(&rec.ID, &rec.StartedAt)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("create session: %w", err)
	}
	return rec, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (SessionRecord, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, company_id, topic_tree_id, speaker_name, started_at, ended_at, audio_url, transcript, status
FROM interview_sessions
WHERE id=$1
`, id)
	rec, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionRecord{}, false, nil
		}
		return SessionRecord{}, false, fmt.Errorf("get session: %w", err)
	}
	return rec, true, nil
}

func (s *Store) ListSessionsByCompany(ctx context.Context, companyID string) ([]SessionRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, company_id, topic_tree_id, speaker_name, started_at, ended_at, audio_url, transcript, status
FROM interview_sessions
WHERE company_id=$1
ORDER BY started_at DESC
`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveTranscriptSnapshot is the autosave path: it replaces the transcript
// of a still-active session and touches nothing else.
func (s *Store) SaveTranscriptSnapshot(ctx context.Context, sessionID string, transcript json.RawMessage) error {
	res, err := s.DB.ExecContext(ctx, `
UPDATE interview_sessions SET transcript=$2 WHERE id=$1 AND status=$3
`, sessionID, []byte(transcript), SessionStatusActive)
	if err != nil {
		return fmt.Errorf("autosave transcript: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s not active", sessionID)
	}
	return nil
}

// EndSession performs the single end-of-session mutation: final
// transcript, status, end time and audio url in one statement. An
// omitted transcript or audio url keeps whatever autosave or the audio
// upload already recorded.
func (s *Store) EndSession(ctx context.Context, sessionID string, transcript json.RawMessage, audioURL, status string) error {
	if status != SessionStatusCompleted && status != SessionStatusFailed {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	var transcriptArg interface{}
	if len(transcript) > 0 {
		transcriptArg = []byte(transcript)
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE interview_sessions
SET ended_at=NOW(), transcript=COALESCE($2, transcript), audio_url=COALESCE($3, audio_url), status=$4
WHERE id=$1 AND status=$5
`, sessionID, transcriptArg, nullableString(audioURL), status, SessionStatusActive)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %s not active", sessionID)
	}
	return nil
}

// SetSessionAudioURL records the stored audio blob location for a session.
func (s *Store) SetSessionAudioURL(ctx context.Context, sessionID, audioURL string) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE interview_sessions SET audio_url=$2 WHERE id=$1
`, sessionID, audioURL)
	if err != nil {
		return fmt.Errorf("set audio url: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (SessionRecord, error) {
	var rec SessionRecord
	var treeID, speaker, audio sql.NullString
	var ended sql.NullTime
	var transcript []byte
	if err := row.Scan(&rec.ID, &rec.CompanyID, &treeID, &speaker, &rec.StartedAt, &ended, &audio, &transcript, &rec.Status); err != nil {
		return SessionRecord{}, err
	}
	if treeID.Valid {
		rec.TopicTreeID = treeID.String
	}
	if speaker.Valid {
		rec.SpeakerName = speaker.String
	}
	if audio.Valid {
		rec.AudioURL = audio.String
	}
	if ended.Valid {
		t := ended.Time
		rec.EndedAt = &t
	}
	if len(transcript) > 0 {
		rec.Transcript = transcript
	}
	return rec, nil
}
