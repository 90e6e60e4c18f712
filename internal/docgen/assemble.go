// Package docgen assembles the captured knowledge for a company into a
// nested document mirroring the topic hierarchy, and renders it for
// export.
package docgen

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/harvestlab/knowledge-harvest/internal/store"
	"github.com/harvestlab/knowledge-harvest/internal/topictree"
)

// ErrNoDocument indicates the company, its tree or its data could not be
// resolved; the caller decides whether to fall back to the mock document.
var ErrNoDocument = fmt.Errorf("no document produced")

// Document is the assembled knowledge document for a company.
type Document struct {
	Company     string    `json:"company"`
	GeneratedAt time.Time `json:"generated_at"`
	Sections    []Section `json:"sections"`
}

// Section mirrors one topic node. HTML holds the rendered fragment for
// the topic's own atoms; Subsections mirror its children in tree order.
type Section struct {
	TopicID     string    `json:"topic_id"`
	Title       string    `json:"title"`
	HTML        string    `json:"html"`
	Subsections []Section `json:"subsections"`
}

// Assembler builds documents from persisted trees and knowledge atoms.
type Assembler struct {
	Store  *store.Store
	Logger *log.Logger
}

func NewAssembler(st *store.Store) *Assembler {
	return &Assembler{
		Store:  st,
		Logger: log.New(log.Writer(), "[DOCGEN] ", log.LstdFlags),
	}
}

// BuildForCompany resolves the company, its latest tree and all atoms from
// its sessions, then assembles the document. Any resolution failure maps
// to ErrNoDocument; malformed persisted tree data is logged, not raised.
func (a *Assembler) BuildForCompany(ctx context.Context, companyID string) (*Document, error) {
	company, ok, err := a.Store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoDocument
	}
	treeRec, ok, err := a.Store.LatestTopicTree(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoDocument
	}
	tree, err := topictree.Parse(treeRec.Tree)
	if err != nil {
		a.Logger.Printf("company %s has malformed tree %s: %v", companyID, treeRec.ID, err)
		return nil, ErrNoDocument
	}
	atoms, err := a.Store.ListAtomsByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return Assemble(tree, atoms, company.Name, time.Now()), nil
}

// Assemble groups atoms by topic and walks the tree depth-first,
// preserving child order.
func Assemble(tree *topictree.Tree, atoms []store.KnowledgeAtomRecord, companyName string, now time.Time) *Document {
	byTopic := make(map[string][]store.KnowledgeAtomRecord)
	for _, atom := range atoms {
		byTopic[atom.TopicID] = append(byTopic[atom.TopicID], atom)
	}
	return &Document{
		Company:     companyName,
		GeneratedAt: now,
		Sections:    buildSections(tree.Topics, byTopic),
	}
}

func buildSections(topics []topictree.Topic, byTopic map[string][]store.KnowledgeAtomRecord) []Section {
	sections := make([]Section, 0, len(topics))
	for _, topic := range topics {
		sections = append(sections, Section{
			TopicID:     topic.ID,
			Title:       topic.Name,
			HTML:        renderTopicHTML(byTopic[topic.ID]),
			Subsections: buildSections(topic.Children, byTopic),
		})
	}
	return sections
}

// renderTopicHTML renders one topic's atoms in fixed order: facts,
// procedures, best practices, troubleshooting.
func renderTopicHTML(atoms []store.KnowledgeAtomRecord) string {
	if len(atoms) == 0 {
		return `<p class="placeholder">No knowledge captured for this topic yet.</p>`
	}

	var facts, procedures, practices, troubles []store.KnowledgeAtomRecord
	for _, atom := range atoms {
		switch atom.Type {
		case store.AtomTypeFact:
			facts = append(facts, atom)
		case store.AtomTypeProcedure:
			procedures = append(procedures, atom)
		case store.AtomTypeBestPractice:
			practices = append(practices, atom)
		case store.AtomTypeTroubleshooting:
			troubles = append(troubles, atom)
		}
	}

	var b strings.Builder
	writeBulletList(&b, "Key Facts", facts)
	for _, p := range procedures {
		fmt.Fprintf(&b, "<h4>%s</h4>\n<p>%s</p>\n", html.EscapeString(p.Title), html.EscapeString(p.Content))
	}
	writeBulletList(&b, "Best Practices", practices)
	for _, tr := range troubles {
		fmt.Fprintf(&b, "<h4>Troubleshooting: %s</h4>\n<p>%s</p>\n", html.EscapeString(tr.Title), html.EscapeString(tr.Content))
	}
	return b.String()
}

func writeBulletList(b *strings.Builder, heading string, atoms []store.KnowledgeAtomRecord) {
	if len(atoms) == 0 {
		return
	}
	fmt.Fprintf(b, "<h4>%s</h4>\n<ul>\n", heading)
	for _, atom := range atoms {
		fmt.Fprintf(b, "<li><strong>%s</strong>: %s</li>\n", html.EscapeString(atom.Title), html.EscapeString(atom.Content))
	}
	b.WriteString("</ul>\n")
}
