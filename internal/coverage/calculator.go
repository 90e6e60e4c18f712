// Package coverage derives per-topic coverage summaries from the topic
// tree and the accumulated coverage evidence.
package coverage

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/harvestlab/knowledge-harvest/internal/store"
	"github.com/harvestlab/knowledge-harvest/internal/topictree"
)

// ErrTreeNotFound indicates the company has no persisted topic tree, so
// nothing can be computed.
var ErrTreeNotFound = fmt.Errorf("topic tree not found")

const maxNextQuestions = 5

// Calculator recomputes and persists the coverage score set for a company.
type Calculator struct {
	Store  *store.Store
	Logger *log.Logger
}

func NewCalculator(st *store.Store) *Calculator {
	return &Calculator{
		Store:  st,
		Logger: log.New(log.Writer(), "[COVERAGE] ", log.LstdFlags),
	}
}

// Recompute loads the company's latest tree and all its evidence, derives
// one summary per topic node and replaces the stored score set. The old
// rows are gone before the new ones land; a concurrent reader may observe
// an empty window.
func (c *Calculator) Recompute(ctx context.Context, companyID string) ([]store.CoverageScoreRecord, error) {
	rec, ok, err := c.Store.LatestTopicTree(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTreeNotFound
	}
	tree, err := topictree.Parse(rec.Tree)
	if err != nil {
		return nil, err
	}

	evidence, err := c.Store.ListEvidenceByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	scores := Compute(tree, evidence)
	for i := range scores {
		scores[i].CompanyID = companyID
	}
	if err := c.Store.ReplaceCoverageScores(ctx, companyID, scores); err != nil {
		return nil, err
	}
	c.Logger.Printf("recomputed %d topic scores for company %s (%d evidence rows)", len(scores), companyID, len(evidence))
	return scores, nil
}

// Compute derives one summary per topic node, flattened across the whole
// tree. Evidence rows whose topic id matches no node are grouped but never
// surface, since iteration is driven by the tree.
func Compute(tree *topictree.Tree, evidence []store.EvidenceRecord) []store.CoverageScoreRecord {
	nodes, order := tree.Flatten()

	byTopic := make(map[string][]store.EvidenceRecord)
	for _, ev := range evidence {
		byTopic[ev.TopicID] = append(byTopic[ev.TopicID], ev)
	}

	out := make([]store.CoverageScoreRecord, 0, len(order))
	for _, id := range order {
		topic := nodes[id]
		out = append(out, summarize(topic, byTopic[id]))
	}
	return out
}

func summarize(topic *topictree.Topic, rows []store.EvidenceRecord) store.CoverageScoreRecord {
	rec := store.CoverageScoreRecord{
		TopicID:         topic.ID,
		TopicName:       topic.Name,
		TargetQuestions: len(topic.Targets),
		EvidenceCount:   len(rows),
	}

	answeredTargets := make(map[string]struct{})
	var confidenceSum float64
	var last time.Time
	for _, ev := range rows {
		if ev.TargetID != "" {
			answeredTargets[ev.TargetID] = struct{}{}
		}
		confidenceSum += ev.Confidence
		if ev.CreatedAt.After(last) {
			last = ev.CreatedAt
		}
	}

	rec.AnsweredQuestions = len(answeredTargets)
	if rec.AnsweredQuestions == 0 && rec.TargetQuestions > 0 && len(rows) > 0 {
		// Evidence exists but none of it is tagged to a specific target:
		// treat each row as answering at most one question.
		rec.AnsweredQuestions = min(len(rows), rec.TargetQuestions)
	}

	switch {
	case rec.TargetQuestions > 0:
		pct := float64(rec.AnsweredQuestions) / float64(rec.TargetQuestions) * 100
		rec.CoveragePercent = int(math.Round(math.Min(100, pct)))
	case len(rows) > 0:
		rec.CoveragePercent = 100
	default:
		rec.CoveragePercent = 0
	}

	if len(rows) > 0 {
		rec.Confidence = confidenceSum / float64(len(rows))
		t := last
		rec.LastEvidenceAt = &t
	}

	for _, tg := range topic.Targets {
		if len(rec.NextQuestions) >= maxNextQuestions {
			break
		}
		if _, ok := answeredTargets[tg.ID]; !ok {
			rec.NextQuestions = append(rec.NextQuestions, tg.Q)
		}
	}
	return rec
}
