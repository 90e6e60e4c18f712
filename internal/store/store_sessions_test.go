package store

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestCreateSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	started := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO interview_sessions (company_id, topic_tree_id, speaker_name, status)
VALUES ($1,$2,$3,$4)
RETURNING id, started_at
`)).
		WithArgs("co-1", "tree-1", "Dana", SessionStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id", "started_at"}).AddRow("sess-1", started))

	rec, err := st.CreateSession(context.Background(), "co-1", "tree-1", "Dana")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if rec.ID != "sess-1" || rec.Status != SessionStatusActive {
		t.Fatalf("unexpected session: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEndSessionRequiresActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	transcript := json.RawMessage(`[{"role":"assistant","content":"hi"}]`)

	mock.ExpectExec(`UPDATE interview_sessions`).
		WithArgs("sess-1", []byte(transcript), "/audio/sess-1.webm", SessionStatusCompleted, SessionStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = st.EndSession(context.Background(), "sess-1", transcript, "/audio/sess-1.webm", SessionStatusCompleted)
	if err == nil {
		t.Fatalf("expected error for already-ended session")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEndSessionRejectsBadStatus(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	if err := st.EndSession(context.Background(), "sess-1", nil, "", SessionStatusActive); err == nil {
		t.Fatalf("expected terminal-status rejection")
	}
}

func TestSaveTranscriptSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	transcript := json.RawMessage(`[{"role":"user","content":"We check the valves first."}]`)
	mock.ExpectExec(regexp.QuoteMeta(`
UPDATE interview_sessions SET transcript=$2 WHERE id=$1 AND status=$3
`)).
		WithArgs("sess-1", []byte(transcript), SessionStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SaveTranscriptSnapshot(context.Background(), "sess-1", transcript); err != nil {
		t.Fatalf("SaveTranscriptSnapshot: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEndSessionKeepsAutosavedTranscript(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	transcript := json.RawMessage(`[{"role":"user","content":"We check the valves first."}]`)

	mock.ExpectExec(regexp.QuoteMeta(`
UPDATE interview_sessions SET transcript=$2 WHERE id=$1 AND status=$3
`)).
		WithArgs("sess-1", []byte(transcript), SessionStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Ending without a body must not null out the snapshot or audio url.
	mock.ExpectExec(regexp.QuoteMeta(`
UPDATE interview_sessions
SET ended_at=NOW(), transcript=COALESCE($2, transcript), audio_url=COALESCE($3, audio_url), status=$4
WHERE id=$1 AND status=$5
`)).
		WithArgs("sess-1", nil, nil, SessionStatusCompleted, SessionStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SaveTranscriptSnapshot(context.Background(), "sess-1", transcript); err != nil {
		t.Fatalf("SaveTranscriptSnapshot: %v", err)
	}
	if err := st.EndSession(context.Background(), "sess-1", nil, "", SessionStatusCompleted); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery(`SELECT id, company_id, topic_tree_id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, ok, err := st.GetSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if ok {
		t.Fatalf("expected not found")
	}
}
