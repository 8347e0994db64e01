// Package collab defines the external collaborators the mission phases call
// and their Perplexity and Claude backed implementations.
package collab

import (
	"context"

	"github.com/sells-group/mission-cli/internal/model"
)

// DiscoveryResult is the discovered company universe plus a validation sample.
type DiscoveryResult struct {
	Companies        []model.Company `json:"companies"`
	ValidationSample []model.Company `json:"validationSample"`
	TotalCount       int             `json:"totalCount"`
}

// CompanyScore is one scored company, indexed into the batch that was sent.
type CompanyScore struct {
	Index  int    `json:"index"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// RankedContact is one ranked contact, indexed into the batch that was sent.
// Score is nil when the ranker ordered the contact without scoring it.
type RankedContact struct {
	Index     int    `json:"index"`
	Score     *int   `json:"score,omitempty"`
	Reasoning string `json:"reasoning"`
}

// Discoverer finds the company universe for a profile.
type Discoverer interface {
	Discover(ctx context.Context, profile model.Profile) (*DiscoveryResult, error)
}

// CompanyScorer scores a batch of companies against a profile. Entries below
// the qualifying threshold may be omitted.
type CompanyScorer interface {
	ScoreCompanies(ctx context.Context, companies []model.Company, profile model.Profile, calibration model.Calibration) ([]CompanyScore, error)
}

// PeopleFinder finds up to limit people per company whose titles match.
// Results are ideally ordered best-first per company.
type PeopleFinder interface {
	FindPeople(ctx context.Context, companies []model.Company, titles []string, limit int) ([]model.Contact, error)
}

// ContactRanker orders and scores contacts against a profile.
type ContactRanker interface {
	RankContacts(ctx context.Context, contacts []model.Contact, profile model.Profile) ([]RankedContact, error)
}

// Collaborators bundles the four calls a mission depends on.
type Collaborators struct {
	Discoverer Discoverer
	Scorer     CompanyScorer
	People     PeopleFinder
	Ranker     ContactRanker
}
