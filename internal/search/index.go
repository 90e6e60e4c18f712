// Package search provides full-text lookup over a company's knowledge
// atoms. Indexes are built in memory on demand; atoms are append-only,
// so a rebuild per query window is cheap and always consistent.
package search

import (
	"context"
	"fmt"
	"log"

	"github.com/blevesearch/bleve"

	"github.com/harvestlab/knowledge-harvest/internal/store"
)

const defaultLimit = 20

// Hit is one matching atom plus its relevance score.
type Hit struct {
	Atom  store.KnowledgeAtomRecord `json:"atom"`
	Score float64                   `json:"score"`
}

type atomDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Type    string `json:"type"`
	TopicID string `json:"topic_id"`
}

// Searcher builds and queries per-company indexes.
type Searcher struct {
	Store  *store.Store
	Logger *log.Logger
}

func NewSearcher(st *store.Store) *Searcher {
	return &Searcher{
		Store:  st,
		Logger: log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}
}

// Search matches the query against the company's atoms and returns hits
// ordered by score. A limit <= 0 falls back to the default.
func (s *Searcher) Search(ctx context.Context, companyID, query string, limit int) ([]Hit, error) {
	atoms, err := s.Store.ListAtomsByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return Match(atoms, query, limit)
}

// Match runs the query against an already-loaded atom set.
func Match(atoms []store.KnowledgeAtomRecord, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	idx, byID, err := buildIndex(atoms)
	if err != nil {
		return nil, err
	}
	defer idx.Close()

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		atom, ok := byID[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Atom: atom, Score: h.Score})
	}
	return hits, nil
}

func buildIndex(atoms []store.KnowledgeAtomRecord) (bleve.Index, map[string]store.KnowledgeAtomRecord, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, nil, fmt.Errorf("build index: %w", err)
	}
	byID := make(map[string]store.KnowledgeAtomRecord, len(atoms))
	batch := idx.NewBatch()
	for _, atom := range atoms {
		byID[atom.ID] = atom
		if err := batch.Index(atom.ID, atomDoc{
			Title:   atom.Title,
			Content: atom.Content,
			Type:    atom.Type,
			TopicID: atom.TopicID,
		}); err != nil {
			idx.Close()
			return nil, nil, fmt.Errorf("index atom %s: %w", atom.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return nil, nil, fmt.Errorf("index batch: %w", err)
	}
	return idx, byID, nil
}
