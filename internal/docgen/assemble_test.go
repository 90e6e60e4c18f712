package docgen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/harvestlab/knowledge-harvest/internal/store"
	"github.com/harvestlab/knowledge-harvest/internal/topictree"
)

func sampleTree(t *testing.T) *topictree.Tree {
	t.Helper()
	tree, err := topictree.Parse([]byte(`{
	  "company": "Acme",
	  "topics": [
	    {"id": "safety", "name": "Plant Safety",
	     "children": [{"id": "ppe", "name": "Protective Equipment"}]},
	    {"id": "maintenance", "name": "Maintenance"}
	  ]
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return tree
}

func TestAssembleOrderingAndNesting(t *testing.T) {
	tree := sampleTree(t)
	atoms := []store.KnowledgeAtomRecord{
		{TopicID: "safety", Type: store.AtomTypeTroubleshooting, Title: "Press jams", Content: "Check the feeder first."},
		{TopicID: "safety", Type: store.AtomTypeFact, Title: "Lockout points", Content: "Six per line."},
		{TopicID: "safety", Type: store.AtomTypeProcedure, Title: "Shutdown", Content: "Bleed the accumulator."},
		{TopicID: "safety", Type: store.AtomTypeBestPractice, Title: "Buddy check", Content: "Never lock out alone."},
	}
	doc := Assemble(tree, atoms, "Acme", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	if len(doc.Sections) != 2 {
		t.Fatalf("expected 2 top-level sections, got %d", len(doc.Sections))
	}
	if doc.Sections[0].TopicID != "safety" || doc.Sections[1].TopicID != "maintenance" {
		t.Fatalf("topic order not preserved: %+v", doc.Sections)
	}
	if len(doc.Sections[0].Subsections) != 1 || doc.Sections[0].Subsections[0].TopicID != "ppe" {
		t.Fatalf("nesting not preserved: %+v", doc.Sections[0].Subsections)
	}
	if len(doc.Sections[1].Subsections) != 0 {
		t.Fatalf("childless node must have empty subsections")
	}

	html := doc.Sections[0].HTML
	// Fixed render order: facts, procedures, best practices, troubleshooting.
	factIdx := strings.Index(html, "Lockout points")
	procIdx := strings.Index(html, "Shutdown")
	practiceIdx := strings.Index(html, "Buddy check")
	troubleIdx := strings.Index(html, "Press jams")
	if factIdx < 0 || procIdx < 0 || practiceIdx < 0 || troubleIdx < 0 {
		t.Fatalf("missing atom content in html: %s", html)
	}
	if !(factIdx < procIdx && procIdx < practiceIdx && practiceIdx < troubleIdx) {
		t.Fatalf("atom type order wrong: facts=%d proc=%d practice=%d trouble=%d", factIdx, procIdx, practiceIdx, troubleIdx)
	}
}

func TestAssemblePlaceholderAndEscaping(t *testing.T) {
	tree := sampleTree(t)
	atoms := []store.KnowledgeAtomRecord{
		{TopicID: "maintenance", Type: store.AtomTypeFact, Title: "Grease <interval>", Content: "Every 400h & under load."},
	}
	doc := Assemble(tree, atoms, "Acme", time.Now())

	if !strings.Contains(doc.Sections[0].HTML, "No knowledge captured") {
		t.Errorf("topic without atoms must render the placeholder: %s", doc.Sections[0].HTML)
	}
	if !strings.Contains(doc.Sections[1].HTML, "Grease &lt;interval&gt;") {
		t.Errorf("atom titles must be escaped: %s", doc.Sections[1].HTML)
	}
	if !strings.Contains(doc.Sections[1].HTML, "Every 400h &amp; under load.") {
		t.Errorf("atom content must be escaped: %s", doc.Sections[1].HTML)
	}
}

func TestRenderHTMLNestedHeadings(t *testing.T) {
	tree := sampleTree(t)
	doc := Assemble(tree, nil, "Acme & Sons", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	page := RenderHTML(doc)

	if !strings.Contains(page, "<h1>Acme &amp; Sons — Knowledge Base</h1>") {
		t.Errorf("missing escaped title: %s", page)
	}
	if !strings.Contains(page, "<h2>Plant Safety</h2>") || !strings.Contains(page, "<h3>Protective Equipment</h3>") {
		t.Errorf("nested heading levels missing: %s", page)
	}
}

func TestBuildForCompanyNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	a := NewAssembler(&store.Store{DB: db})
	mock.ExpectQuery(`SELECT id, name, created_at FROM companies`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = a.BuildForCompany(context.Background(), "missing")
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
}

func TestBuildForCompanyMalformedTree(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	a := NewAssembler(&store.Store{DB: db})
	now := time.Now()
	mock.ExpectQuery(`SELECT id, name, created_at FROM companies`).
		WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).AddRow("co-1", "Acme", now))
	mock.ExpectQuery(`SELECT id, company_id, tree, created_at`).
		WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "tree", "created_at"}).
			AddRow("tree-1", "co-1", []byte(`{"topics": [`), now))

	_, err = a.BuildForCompany(context.Background(), "co-1")
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("malformed tree must map to ErrNoDocument, got %v", err)
	}
}

func TestMockDocumentStable(t *testing.T) {
	doc := MockDocument()
	if doc.Company == "" || len(doc.Sections) == 0 {
		t.Fatalf("mock document must carry content: %+v", doc)
	}
	page := RenderHTML(doc)
	if !strings.Contains(page, "Lockout points") {
		t.Errorf("mock render missing demo content")
	}
}
