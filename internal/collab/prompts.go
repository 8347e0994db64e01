package collab

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/mission-cli/internal/model"
)

// Model constants.
const (
	ModelHaiku  = "claude-haiku-4-5-20251001"
	ModelSonnet = "claude-sonnet-4-5-20250929"
)

const discoverPrompt = `Research real, currently operating companies that match this ideal customer profile.

%s

Return up to %d companies as a JSON array. Each element must have:
- name: string
- industry: string
- employee_count: integer (best estimate)
- location: string (city, state or country of headquarters)
- website: string (homepage URL)
- founded_year: integer or null

Return ONLY the JSON array.`

const peoplePrompt = `Find decision makers at the companies below whose titles match: %s.
Return at most %d people per company, best match first.

Companies:
%s

Return a JSON array. Each element must have:
- company_index: integer (the index of the company in the list above)
- name: string
- title: string
- seniority: string (e.g. "C-level", "VP", "Director", "Manager")
- email: string or null
- phone: string or null
- linkedin: string (profile URL) or null

Only include people you found evidence for. Return ONLY the JSON array.`

const scoringRubric = `You score companies for fit against an ideal customer profile on a 0-100 scale.

Weigh industry match, company size, location, and any signals of need for the seller's offering.
Companies named on the profile's avoid list score below 20.
Omit companies that score below %d.

Respond with ONLY a JSON array, no other text:
[{"index": 0, "score": 85, "reason": "one sentence"}]
where index is the company's position in the list you were given.`

const rankingRubric = `You rank sales contacts for outreach against an ideal customer profile.

Prefer exact title matches, decision-making seniority, companies that fit the profile well,
and contacts with direct channels (email, phone, LinkedIn).

Respond with ONLY a JSON array ordered best first, no other text:
[{"index": 0, "score": 92, "reasoning": "one sentence"}]
where index is the contact's position in the list you were given and score is 0-100.
Include every contact exactly once.`

const structurePrompt = `Convert the research notes below into a JSON array. %s
If a field cannot be determined, use null. Return ONLY the JSON array.

Research notes:
%s`

// describeProfile renders a profile for prompts.
func describeProfile(p model.Profile) string {
	var sb strings.Builder
	field := func(label string, vals []string) {
		if len(vals) > 0 {
			fmt.Fprintf(&sb, "%s: %s\n", label, strings.Join(vals, ", "))
		}
	}
	field("Industries", p.Industries)
	field("Company sizes (employees)", p.CompanySizes)
	field("Revenue", p.RevenueBands)
	field("Locations", p.Locations)
	field("Target titles", p.TargetTitles)
	if terms := p.AvoidTerms(); len(terms) > 0 {
		field("Avoid", terms)
	}
	return strings.TrimSpace(sb.String())
}

// indexedJSON renders items as one JSON object per line prefixed by index.
func indexedJSON[T any](items []T) string {
	var sb strings.Builder
	for i, it := range items {
		b, _ := json.Marshal(it)
		fmt.Fprintf(&sb, "%d. %s\n", i, b)
	}
	return sb.String()
}
