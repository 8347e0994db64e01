package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/mission-cli/internal/batch"
	"github.com/sells-group/mission-cli/internal/collab"
	"github.com/sells-group/mission-cli/internal/config"
	"github.com/sells-group/mission-cli/internal/mission"
	"github.com/sells-group/mission-cli/internal/phase"
	"github.com/sells-group/mission-cli/internal/resilience"
	"github.com/sells-group/mission-cli/internal/store"
	anthropicpkg "github.com/sells-group/mission-cli/pkg/anthropic"
	"github.com/sells-group/mission-cli/pkg/perplexity"
)

// missionEnv holds the store and collaborators shared by the mission and
// serve commands.
type missionEnv struct {
	Store  store.Store
	Collab collab.Collaborators
	Phase  phase.Config
}

// Close releases resources held by the environment.
func (e *missionEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// NewOrchestrator returns an unbound orchestrator over the environment.
func (e *missionEnv) NewOrchestrator() *mission.Orchestrator {
	return mission.New(mission.Deps{Store: e.Store, Collab: e.Collab, Config: e.Phase})
}

// initMission validates config for mode, opens and migrates the store, and
// builds the research and Claude collaborators. Callers should defer
// env.Close().
func initMission(ctx context.Context, mode string) (*missionEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	return &missionEnv{
		Store:  st,
		Collab: initCollaborators(cfg),
		Phase:  phaseConfig(cfg.Mission, cfg.Retry),
	}, nil
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "mission.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{MaxConns: sc.MaxConns})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

func initCollaborators(c *config.Config) collab.Collaborators {
	var aiOpts []anthropicpkg.ClientOption
	if c.Anthropic.BaseURL != "" {
		aiOpts = append(aiOpts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
	}
	ai := anthropicpkg.NewClient(c.Anthropic.Key, aiOpts...)

	pplxOpts := []perplexity.Option{perplexity.WithModel(c.Perplexity.Model)}
	if c.Perplexity.BaseURL != "" {
		pplxOpts = append(pplxOpts, perplexity.WithBaseURL(c.Perplexity.BaseURL))
	}
	if c.Perplexity.TimeoutSecs > 0 {
		pplxOpts = append(pplxOpts, perplexity.WithTimeout(time.Duration(c.Perplexity.TimeoutSecs)*time.Second))
	}
	pplx := perplexity.NewClient(c.Perplexity.Key, pplxOpts...)

	cc := collab.Config{
		MaxCompanies:     c.Mission.MaxCompanies,
		SampleSize:       c.Mission.SampleSize,
		QualifyThreshold: qualifyThreshold(c.Mission.QualifyThreshold),
		ScoringModel:     c.Anthropic.ScoringModel,
		RankingModel:     c.Anthropic.RankingModel,
		StructureModel:   c.Anthropic.StructureModel,
		MaxTokens:        c.Anthropic.MaxTokens,
		RecencyFilter:    c.Perplexity.RecencyFilter,
	}
	research := collab.NewResearch(pplx, ai, cc)
	claude := collab.NewClaude(ai, cc)
	return collab.Collaborators{Discoverer: research, Scorer: claude, People: research, Ranker: claude}
}

// phaseConfig maps config values onto phase settings. Zero values keep the
// phase defaults.
func phaseConfig(m config.MissionConfig, r config.RetryConfig) phase.Config {
	pc := phase.DefaultConfig()
	setIf := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	setIf(&pc.CompanyBatchSize, m.CompanyBatchSize)
	setIf(&pc.PeopleBatchSize, m.PeopleBatchSize)
	setIf(&pc.RankBatchSize, m.RankBatchSize)
	setIf(&pc.PeoplePerCompany, m.PeoplePerCompany)
	setIf(&pc.SampleSize, m.SampleSize)
	setIf(&pc.TopReasons, m.TopReasons)
	pc.QualifyThreshold = qualifyThreshold(m.QualifyThreshold)
	pc.Concurrency = m.Concurrency
	if m.RateLimit > 0 {
		burst := m.RateBurst
		if burst <= 0 {
			burst = 1
		}
		pc.Limiter = rate.NewLimiter(rate.Limit(m.RateLimit), burst)
	}
	if r.MaxAttempts > 0 {
		pc.Retry = resilience.NewPolicy(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs)
	}
	if r.BreakerThreshold > 0 {
		pc.Breakers = resilience.NewBreakers(resilience.BreakerConfig{
			FailureThreshold: r.BreakerThreshold,
			Cooldown:         time.Duration(r.BreakerCooldownSecs) * time.Second,
			ShouldTrip:       batch.TripsBreaker,
		})
	}
	return pc
}

// qualifyThreshold clamps the configured threshold to the scoring floor and
// 100. Zero keeps the floor.
func qualifyThreshold(v int) int {
	return min(max(v, phase.MinQualifyThreshold), 100)
}
