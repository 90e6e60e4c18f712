package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCompanyNotFound is returned when a company cannot be resolved.
var ErrCompanyNotFound = errors.New("company not found")

// TranscriptTurn is one entry in an interview transcript: the assistant
// asking, the speaker answering.
type TranscriptTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseTranscript decodes the serialized transcript stored on a session.
func ParseTranscript(raw json.RawMessage) ([]TranscriptTurn, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var turns []TranscriptTurn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return turns, nil
}

// ExtractedAtom is a knowledge atom proposed by the extraction model,
// before persistence assigns ids.
type ExtractedAtom struct {
	TopicID    string  `json:"topic_id"`
	Type       string  `json:"type"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	SourceSpan string  `json:"source_span,omitempty"`
	Confidence float64 `json:"confidence"`
}

// ExtractedTurn is a question/answer pair attributed to a topic.
type ExtractedTurn struct {
	TopicID      string `json:"topic_id"`
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	SpeakerLabel string `json:"speaker_label,omitempty"`
}

// ExtractedEvidence marks a target question (or general topic mention)
// as covered, with the model's confidence and an excerpt. AtomIndex
// optionally points at the extraction's atom list to link the evidence
// to its source atom.
type ExtractedEvidence struct {
	TopicID    string  `json:"topic_id"`
	TargetID   string  `json:"target_id,omitempty"`
	Confidence float64 `json:"confidence"`
	Excerpt    string  `json:"excerpt,omitempty"`
	AtomIndex  *int    `json:"atom_index,omitempty"`
}

// Extraction is the full output of one post-interview extraction call.
type Extraction struct {
	Atoms    []ExtractedAtom     `json:"atoms"`
	Turns    []ExtractedTurn     `json:"qa_turns"`
	Evidence []ExtractedEvidence `json:"evidence"`
}
