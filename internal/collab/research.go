package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mission-cli/internal/batch"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/pkg/anthropic"
	"github.com/sells-group/mission-cli/pkg/perplexity"
)

// Research runs web research through Perplexity. When Perplexity answers in
// prose without JSON, an optional Claude client structures the answer.
type Research struct {
	pplx perplexity.Client
	ai   anthropic.Client
	cfg  Config
}

// NewResearch creates a Perplexity-backed Discoverer and PeopleFinder. ai
// may be nil, in which case unstructured answers fail with batch.ErrNoJSON.
func NewResearch(pplx perplexity.Client, ai anthropic.Client, cfg Config) *Research {
	return &Research{pplx: pplx, ai: ai, cfg: cfg.withDefaults()}
}

var (
	_ Discoverer   = (*Research)(nil)
	_ PeopleFinder = (*Research)(nil)
)

// Discover asks Perplexity for companies matching profile, dedupes them by
// name, and picks an evenly spaced validation sample.
func (r *Research) Discover(ctx context.Context, profile model.Profile) (*DiscoveryResult, error) {
	log := zap.L().With(zap.String("collaborator", "perplexity"), zap.String("operation", "discover"))

	prompt := fmt.Sprintf(discoverPrompt, describeProfile(profile), r.cfg.MaxCompanies)
	rows, err := research[companyJSON](ctx, r, prompt,
		"Each element: name, industry, employee_count (integer), location, website, founded_year (integer).")
	if err != nil {
		return nil, eris.Wrap(err, "collab: discover")
	}

	seen := make(map[string]bool, len(rows))
	companies := make([]model.Company, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		companies = append(companies, model.Company{
			ID:            uuid.New().String(),
			Name:          name,
			Industry:      strings.TrimSpace(row.Industry),
			EmployeeCount: int(row.EmployeeCount),
			Location:      strings.TrimSpace(row.Location),
			Website:       strings.TrimSpace(row.Website),
			FoundedYear:   int(row.FoundedYear),
		})
		if len(companies) == r.cfg.MaxCompanies {
			break
		}
	}

	log.Info("discovered companies", zap.Int("returned", len(rows)), zap.Int("kept", len(companies)))
	return &DiscoveryResult{
		Companies:        companies,
		ValidationSample: Sample(companies, r.cfg.SampleSize),
		TotalCount:       len(companies),
	}, nil
}

// FindPeople asks Perplexity for people at companies with matching titles.
// Contacts come back with their company reference attached, at most limit
// per company, in the order Perplexity ranked them.
func (r *Research) FindPeople(ctx context.Context, companies []model.Company, titles []string, limit int) ([]model.Contact, error) {
	if len(companies) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 3
	}
	type companyLine struct {
		Name     string `json:"name"`
		Website  string `json:"website,omitempty"`
		Location string `json:"location,omitempty"`
	}
	lines := make([]companyLine, len(companies))
	for i, c := range companies {
		lines[i] = companyLine{Name: c.Name, Website: c.Website, Location: c.Location}
	}

	titleList := "any senior decision maker"
	if len(titles) > 0 {
		titleList = strings.Join(titles, ", ")
	}
	prompt := fmt.Sprintf(peoplePrompt, titleList, limit, indexedJSON(lines))
	rows, err := research[personJSON](ctx, r, prompt,
		"Each element: company_index (integer), name, title, seniority, email, phone, linkedin.")
	if err != nil {
		return nil, eris.Wrap(err, "collab: find people")
	}

	perCompany := make(map[int]int, len(companies))
	var out []model.Contact
	for _, row := range rows {
		idx := int(row.CompanyIndex)
		if idx < 0 || idx >= len(companies) || strings.TrimSpace(row.Name) == "" {
			zap.L().Debug("collab: dropping person with unknown company", zap.Int("company_index", idx))
			continue
		}
		if perCompany[idx] >= limit {
			continue
		}
		perCompany[idx]++
		out = append(out, model.Contact{
			ID:        uuid.New().String(),
			Name:      strings.TrimSpace(row.Name),
			Title:     strings.TrimSpace(row.Title),
			Seniority: strings.TrimSpace(row.Seniority),
			Company:   model.RefOf(companies[idx]),
			Email:     row.Email.v,
			Phone:     row.Phone.v,
			LinkedIn:  row.LinkedIn.v,
		})
	}
	return out, nil
}

// research sends prompt to Perplexity and decodes a JSON array of T from the
// answer, structuring prose through Claude when needed.
func research[T any](ctx context.Context, r *Research, prompt, shape string) ([]T, error) {
	temp := 0.1
	resp, err := r.pplx.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages:            []perplexity.Message{{Role: "user", Content: prompt}},
		Temperature:         &temp,
		SearchRecencyFilter: r.cfg.RecencyFilter,
	})
	if err != nil {
		return nil, classify(err, "perplexity request")
	}
	text := resp.Content()

	rows, err := batch.DecodeJSONArray[T](text)
	if err == nil || !errors.Is(err, batch.ErrNoJSON) || r.ai == nil {
		return rows, err
	}

	zap.L().Debug("collab: structuring prose answer", zap.Int("chars", len(text)))
	structured, serr := r.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     r.cfg.StructureModel,
		MaxTokens: r.cfg.MaxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: fmt.Sprintf(structurePrompt, shape, text)}},
	})
	if serr != nil {
		return nil, classify(serr, "structure answer")
	}
	structured.Usage.LogCost(r.cfg.StructureModel, "structure")
	return batch.DecodeJSONArray[T](structured.Text())
}

// Sample picks n companies spread evenly across the list. It returns the
// whole list when n >= len(companies).
func Sample(companies []model.Company, n int) []model.Company {
	if n <= 0 || len(companies) == 0 {
		return nil
	}
	if n >= len(companies) {
		return append([]model.Company(nil), companies...)
	}
	out := make([]model.Company, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, companies[i*len(companies)/n])
	}
	return out
}
