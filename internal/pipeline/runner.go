// Package pipeline runs the post-interview two-step pipeline: knowledge
// extraction from the transcript, then a coverage recompute for the
// company.
package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/harvestlab/knowledge-harvest/internal/coverage"
	"github.com/harvestlab/knowledge-harvest/internal/store"
	"github.com/harvestlab/knowledge-harvest/models"
	"github.com/harvestlab/knowledge-harvest/provider"
)

const (
	lockTTL   = 10 * time.Minute
	doneTTL   = 0 // no expiry; a session is extracted at most once
	runBudget = 5 * time.Minute
)

// Runner executes the pipeline for one ended session. Idempotency is
// keyed by session id: a Redis lock prevents concurrent runs and a done
// marker prevents re-extraction on duplicate triggers.
type Runner struct {
	Store    *store.Store
	Provider provider.Provider
	Rdb      *redis.Client
	Calc     *coverage.Calculator
	Logger   *log.Logger
}

func NewRunner(st *store.Store, prov provider.Provider, rdb *redis.Client) *Runner {
	return &Runner{
		Store:    st,
		Provider: prov,
		Rdb:      rdb,
		Calc:     coverage.NewCalculator(st),
		Logger:   log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
}

// Kickoff fires the pipeline in the background. Failures are logged and
// swallowed; the originating request never sees them.
func (r *Runner) Kickoff(sessionID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runBudget)
		defer cancel()
		if err := r.Run(ctx, sessionID); err != nil {
			r.Logger.Printf("session %s pipeline: %v", sessionID, err)
		}
	}()
}

// Run executes extraction then coverage recompute for a session.
func (r *Runner) Run(ctx context.Context, sessionID string) error {
	if r.Rdb != nil {
		done, err := r.Rdb.Exists(ctx, doneKey(sessionID)).Result()
		if err == nil && done > 0 {
			r.Logger.Printf("session %s already extracted, skipping", sessionID)
			return nil
		}
		ok, err := r.Rdb.SetNX(ctx, lockKey(sessionID), uuid.NewString(), lockTTL).Result()
		if err != nil {
			r.Logger.Printf("session %s lock unavailable, proceeding without: %v", sessionID, err)
		} else if !ok {
			r.Logger.Printf("session %s pipeline already running, skipping", sessionID)
			return nil
		} else {
			defer r.Rdb.Del(context.WithoutCancel(ctx), lockKey(sessionID))
		}
	}

	sess, ok, err := r.Store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		r.Logger.Printf("session %s not found, skipping pipeline", sessionID)
		return nil
	}

	if err := r.extract(ctx, sess); err != nil {
		// Extraction failure skips the step but still leaves existing
		// evidence usable for the recompute below.
		r.Logger.Printf("session %s extraction skipped: %v", sessionID, err)
	} else if r.Rdb != nil {
		if err := r.Rdb.Set(ctx, doneKey(sessionID), time.Now().UTC().Format(time.RFC3339), doneTTL).Err(); err != nil {
			r.Logger.Printf("session %s done marker: %v", sessionID, err)
		}
	}

	if _, err := r.Calc.Recompute(ctx, sess.CompanyID); err != nil {
		r.Logger.Printf("company %s coverage recompute skipped: %v", sess.CompanyID, err)
	}
	return nil
}

func (r *Runner) extract(ctx context.Context, sess store.SessionRecord) error {
	company, ok, err := r.Store.GetCompany(ctx, sess.CompanyID)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrCompanyNotFound
	}
	treeRec, ok, err := r.Store.LatestTopicTree(ctx, sess.CompanyID)
	if err != nil {
		return err
	}
	if !ok {
		return coverage.ErrTreeNotFound
	}
	transcript, err := models.ParseTranscript(sess.Transcript)
	if err != nil {
		return err
	}
	if len(transcript) == 0 {
		r.Logger.Printf("session %s has empty transcript, nothing to extract", sess.ID)
		return nil
	}

	extraction, err := r.Provider.ExtractKnowledge(ctx, company.Name, treeRec.Tree, transcript)
	if err != nil {
		return err
	}
	return r.persist(ctx, sess, extraction)
}

// persist appends the extraction output. Atom and turn ids are captured
// so evidence can link back to its source rows by position.
func (r *Runner) persist(ctx context.Context, sess store.SessionRecord, ex *models.Extraction) error {
	atomIDs := make(map[int]string, len(ex.Atoms))
	for i, atom := range ex.Atoms {
		rec, err := r.Store.InsertKnowledgeAtom(ctx, store.KnowledgeAtomRecord{
			SessionID:  sess.ID,
			TopicID:    atom.TopicID,
			Type:       atom.Type,
			Title:      atom.Title,
			Content:    atom.Content,
			SourceSpan: atom.SourceSpan,
			Confidence: atom.Confidence,
		})
		if err != nil {
			return err
		}
		atomIDs[i] = rec.ID
	}
	for _, turn := range ex.Turns {
		if _, err := r.Store.InsertQATurn(ctx, store.QATurnRecord{
			SessionID:    sess.ID,
			TopicID:      turn.TopicID,
			Question:     turn.Question,
			Answer:       turn.Answer,
			Timestamp:    time.Now().UTC(),
			SpeakerLabel: turn.SpeakerLabel,
		}); err != nil {
			return err
		}
	}
	for _, ev := range ex.Evidence {
		rec := store.EvidenceRecord{
			CompanyID:  sess.CompanyID,
			TopicID:    ev.TopicID,
			TargetID:   ev.TargetID,
			Confidence: ev.Confidence,
			Excerpt:    ev.Excerpt,
		}
		if ev.AtomIndex != nil {
			rec.AtomID = atomIDs[*ev.AtomIndex]
		}
		if _, err := r.Store.InsertEvidence(ctx, rec); err != nil {
			return err
		}
	}
	r.Logger.Printf("session %s extracted: %d atoms, %d turns, %d evidence rows",
		sess.ID, len(ex.Atoms), len(ex.Turns), len(ex.Evidence))
	return nil
}

func lockKey(sessionID string) string { return "pipeline:lock:" + sessionID }
func doneKey(sessionID string) string { return "pipeline:done:" + sessionID }
