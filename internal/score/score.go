// Package score implements deterministic contact scoring and the precedence
// rule between AI-provided and deterministic scores.
package score

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/mission-cli/internal/model"
)

// Maximum points per criterion.
const (
	MaxTitle        = 25
	TitleOverlap    = 20
	MaxIndustry     = 20
	MaxSize         = 20
	MaxLocation     = 15
	MaxAvoidClear   = 10
	EmailPoints     = 5
	LinkedInPoints  = 3
	PhonePoints     = 2
	MaxCompleteness = EmailPoints + LinkedInPoints + PhonePoints
)

// Criterion names used as breakdown keys.
const (
	CriterionTitle        = "title"
	CriterionIndustry     = "industry"
	CriterionSize         = "size"
	CriterionLocation     = "location"
	CriterionAvoid        = "avoid"
	CriterionCompleteness = "completeness"
)

// Result is a contact score with its per-criterion breakdown. Score is always
// the sum of the breakdown values.
type Result struct {
	Score     int            `json:"score"`
	Breakdown map[string]int `json:"breakdown"`
}

// fold case-folds s. A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Contact scores c against the profile. locationPoints is the location fit
// computed upstream; it is only used when the profile is not nationwide and is
// clamped to [0, MaxLocation].
func Contact(c model.Contact, p model.Profile, locationPoints int) Result {
	b := map[string]int{
		CriterionTitle:        titlePoints(c.Title, p.TargetTitles),
		CriterionIndustry:     industryPoints(c.Company.Industry, p.Industries),
		CriterionSize:         sizePoints(c.Company.EmployeeCount, p.CompanySizes),
		CriterionLocation:     locationFit(p, locationPoints),
		CriterionAvoid:        avoidPoints(c.Company.Name, p.AvoidTerms()),
		CriterionCompleteness: completenessPoints(c),
	}

	total := 0
	for _, v := range b {
		total += v
	}
	return Result{Score: total, Breakdown: b}
}

func titlePoints(title string, targets []string) int {
	t := fold(title)
	if t == "" || len(targets) == 0 {
		return 0
	}
	best := 0
	for _, target := range targets {
		tt := fold(target)
		if tt == "" {
			continue
		}
		if tt == t {
			return MaxTitle
		}
		if strings.Contains(t, tt) || strings.Contains(tt, t) {
			best = TitleOverlap
		}
	}
	return best
}

func industryPoints(industry string, targets []string) int {
	ind := fold(industry)
	if ind == "" {
		return 0
	}
	for _, target := range targets {
		tt := fold(target)
		if tt == "" {
			continue
		}
		if strings.Contains(ind, tt) || strings.Contains(tt, ind) {
			return MaxIndustry
		}
	}
	return 0
}

func sizePoints(employees int, bands []string) int {
	if employees <= 0 {
		return 0
	}
	for _, label := range bands {
		if b, ok := model.ParseSizeBand(label); ok && b.Contains(employees) {
			return MaxSize
		}
	}
	return 0
}

func locationFit(p model.Profile, upstream int) int {
	if len(p.Locations) == 0 {
		return 0
	}
	if p.IsNationwide() {
		return MaxLocation
	}
	return clamp(upstream, 0, MaxLocation)
}

// avoidPoints awards the avoid-list criterion when the company name is clear
// of every avoid term. An empty avoid list leaves every company clear.
func avoidPoints(companyName string, terms []string) int {
	name := fold(companyName)
	for _, term := range terms {
		if strings.Contains(name, fold(term)) {
			return 0
		}
	}
	return MaxAvoidClear
}

func completenessPoints(c model.Contact) int {
	pts := 0
	if c.HasEmail() {
		pts += EmailPoints
	}
	if c.HasLinkedIn() {
		pts += LinkedInPoints
	}
	if c.HasPhone() {
		pts += PhonePoints
	}
	return pts
}

// Reconcile applies the score precedence rule: an AI score, when present, is
// authoritative; otherwise the deterministic score is used.
func Reconcile(ai *int, deterministic int) (int, model.ScoreSource) {
	if ai != nil {
		return Clamp(*ai), model.ScoreSourceAI
	}
	return Clamp(deterministic), model.ScoreSourceDeterministic
}

// Clamp bounds a match score to [0, 100].
func Clamp(n int) int {
	return clamp(n, 0, 100)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// LocationPoints computes the upstream location fit for a company location:
// full points when it overlaps any target location, zero otherwise.
func LocationPoints(location string, p model.Profile) int {
	loc := fold(location)
	if loc == "" {
		return 0
	}
	for _, target := range p.Locations {
		tt := fold(target)
		if tt == "" {
			continue
		}
		if strings.Contains(loc, tt) || strings.Contains(tt, loc) {
			return MaxLocation
		}
	}
	return 0
}
