package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/harvestlab/knowledge-harvest/internal/coverage"
	"github.com/harvestlab/knowledge-harvest/internal/store"
)

// Scheduler keeps coverage dashboards fresh: on every tick it recomputes
// scores for each company whose last recompute is older than the cron
// spec allows. Redis locks prevent duplicate runs across replicas.
type Scheduler struct {
	Store    *store.Store
	Calc     *coverage.Calculator
	Rdb      *redis.Client
	CronSpec string
	Stop     chan struct{}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	companies, err := s.Store.ListCompanies(ctx)
	if err != nil {
		return
	}
	logger := log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	for _, co := range companies {
		last := s.lastRecompute(ctx, co.ID)
		if !isDue(s.CronSpec, last) {
			continue
		}
		if s.Rdb != nil {
			ok, _ := s.Rdb.SetNX(ctx, "sched:lock:"+co.ID, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}
		go func(companyID string) {
			// jitter to avoid stampedes
			time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)
			if _, err := s.Calc.Recompute(ctx, companyID); err != nil {
				logger.Printf("company %s recompute: %v", companyID, err)
			}
			if s.Rdb != nil {
				s.Rdb.Del(ctx, "sched:lock:"+companyID)
			}
		}(co.ID)
	}
}

// lastRecompute is the newest last_updated among the company's score
// rows; nil means the company has never been recomputed.
func (s *Scheduler) lastRecompute(ctx context.Context, companyID string) *time.Time {
	scores, err := s.Store.ListCoverageScores(ctx, companyID)
	if err != nil || len(scores) == 0 {
		return nil
	}
	newest := scores[0].LastUpdated
	for _, sc := range scores[1:] {
		if sc.LastUpdated.After(newest) {
			newest = sc.LastUpdated
		}
	}
	return &newest
}

// isDue determines whether a recompute scheduled by cronSpec should run
// now given the last run time. Supports "@daily", "@hourly", and
// standard 5-field cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// invalid spec falls back to @daily
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
