package collab

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mission-cli/internal/batch"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/score"
	"github.com/sells-group/mission-cli/pkg/anthropic"
)

// Claude scores companies and ranks contacts.
type Claude struct {
	ai  anthropic.Client
	cfg Config
}

// NewClaude creates a Claude-backed CompanyScorer and ContactRanker.
func NewClaude(ai anthropic.Client, cfg Config) *Claude {
	return &Claude{ai: ai, cfg: cfg.withDefaults()}
}

var (
	_ CompanyScorer = (*Claude)(nil)
	_ ContactRanker = (*Claude)(nil)
)

type scoringCompany struct {
	Name          string `json:"name"`
	Industry      string `json:"industry,omitempty"`
	EmployeeCount int    `json:"employees,omitempty"`
	Location      string `json:"location,omitempty"`
	Website       string `json:"website,omitempty"`
}

// ScoreCompanies scores one batch. Indices outside the batch are dropped and
// scores are clamped to 0..100.
func (c *Claude) ScoreCompanies(ctx context.Context, companies []model.Company, profile model.Profile, calibration model.Calibration) ([]CompanyScore, error) {
	if len(companies) == 0 {
		return nil, nil
	}
	lines := make([]scoringCompany, len(companies))
	for i, co := range companies {
		lines[i] = scoringCompany{Name: co.Name, Industry: co.Industry, EmployeeCount: co.EmployeeCount, Location: co.Location, Website: co.Website}
	}

	text, err := c.ask(ctx, c.cfg.ScoringModel, "scoring",
		anthropic.CachedSystem(fmt.Sprintf(scoringRubric, c.cfg.QualifyThreshold), calibration.Notes()),
		fmt.Sprintf("Profile:\n%s\n\nCompanies:\n%s", describeProfile(profile), indexedJSON(lines)))
	if err != nil {
		return nil, eris.Wrap(err, "collab: score companies")
	}

	rows, err := batch.DecodeJSONArray[scoreJSON](text)
	if err != nil {
		return nil, eris.Wrap(err, "collab: score companies")
	}
	out := make([]CompanyScore, 0, len(rows))
	for _, row := range rows {
		idx := int(row.Index)
		if idx < 0 || idx >= len(companies) {
			continue
		}
		out = append(out, CompanyScore{Index: idx, Score: score.Clamp(int(row.Score)), Reason: row.Reason})
	}
	return out, nil
}

type rankingContact struct {
	Name      string `json:"name"`
	Title     string `json:"title,omitempty"`
	Seniority string `json:"seniority,omitempty"`
	Company   string `json:"company"`
	Industry  string `json:"industry,omitempty"`
	Employees int    `json:"employees,omitempty"`
	Email     bool   `json:"has_email"`
	Phone     bool   `json:"has_phone"`
	LinkedIn  bool   `json:"has_linkedin"`
}

// RankContacts ranks one batch of contacts, best first.
func (c *Claude) RankContacts(ctx context.Context, contacts []model.Contact, profile model.Profile) ([]RankedContact, error) {
	if len(contacts) == 0 {
		return nil, nil
	}
	lines := make([]rankingContact, len(contacts))
	for i, ct := range contacts {
		lines[i] = rankingContact{
			Name: ct.Name, Title: ct.Title, Seniority: ct.Seniority,
			Company: ct.Company.Name, Industry: ct.Company.Industry, Employees: ct.Company.EmployeeCount,
			Email: ct.HasEmail(), Phone: ct.HasPhone(), LinkedIn: ct.HasLinkedIn(),
		}
	}

	text, err := c.ask(ctx, c.cfg.RankingModel, "ranking",
		anthropic.CachedSystem(rankingRubric, ""),
		fmt.Sprintf("Profile:\n%s\n\nContacts:\n%s", describeProfile(profile), indexedJSON(lines)))
	if err != nil {
		return nil, eris.Wrap(err, "collab: rank contacts")
	}

	rows, err := batch.DecodeJSONArray[rankJSON](text)
	if err != nil {
		return nil, eris.Wrap(err, "collab: rank contacts")
	}
	seen := make(map[int]bool, len(rows))
	out := make([]RankedContact, 0, len(rows))
	for _, row := range rows {
		idx := int(row.Index)
		if idx < 0 || idx >= len(contacts) || seen[idx] {
			continue
		}
		seen[idx] = true
		rc := RankedContact{Index: idx, Reasoning: row.Reasoning}
		if row.Score != nil {
			rc.Score = model.IntPtr(score.Clamp(int(*row.Score)))
		}
		out = append(out, rc)
	}
	return out, nil
}

func (c *Claude) ask(ctx context.Context, modelID, phase string, system []anthropic.SystemBlock, user string) (string, error) {
	temp := 0.0
	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       modelID,
		MaxTokens:   c.cfg.MaxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &temp,
	})
	if err != nil {
		return "", classify(err, "claude request")
	}
	resp.Usage.LogCost(modelID, phase)
	if resp.StopReason == "max_tokens" {
		zap.L().Warn("collab: response truncated", zap.String("phase", phase), zap.String("model", modelID))
	}
	return resp.Text(), nil
}
