package search

import (
	"testing"

	"github.com/harvestlab/knowledge-harvest/internal/store"
)

func sampleAtoms() []store.KnowledgeAtomRecord {
	return []store.KnowledgeAtomRecord{
		{ID: "a1", TopicID: "safety", Type: store.AtomTypeProcedure, Title: "Line shutdown", Content: "Bleed the hydraulic pressure before opening the panel."},
		{ID: "a2", TopicID: "maintenance", Type: store.AtomTypeFact, Title: "Filter schedule", Content: "Filters are swapped every third Friday."},
		{ID: "a3", TopicID: "safety", Type: store.AtomTypeBestPractice, Title: "PPE check", Content: "Gloves and goggles before touching the press."},
	}
}

func TestMatchFindsRelevantAtom(t *testing.T) {
	hits, err := Match(sampleAtoms(), "hydraulic pressure", 10)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].Atom.ID != "a1" {
		t.Fatalf("expected a1 first, got %s", hits[0].Atom.ID)
	}
	if hits[0].Atom.TopicID != "safety" {
		t.Fatalf("hit lost its topic id: %+v", hits[0].Atom)
	}
}

func TestMatchNoResults(t *testing.T) {
	hits, err := Match(sampleAtoms(), "zeppelin", 10)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestMatchHonorsLimit(t *testing.T) {
	hits, err := Match(sampleAtoms(), "before", 1)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(hits) > 1 {
		t.Fatalf("expected at most one hit, got %d", len(hits))
	}
}

func TestMatchEmptyCorpus(t *testing.T) {
	hits, err := Match(nil, "anything", 5)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits on empty corpus, got %d", len(hits))
	}
}
