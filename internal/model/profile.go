package model

import (
	"strings"
)

// Location scope markers that mean "anywhere in the country".
var nationwideMarkers = []string{"nationwide", "all us", "all u.s.", "united states"}

// Profile is the Ideal Customer Profile (ICP) driving a mission. It is owned by
// the account and treated as read-only by the pipeline.
type Profile struct {
	Name         string   `json:"name,omitempty" yaml:"name"`
	Industries   []string `json:"industries" yaml:"industries"`
	CompanySizes []string `json:"companySizes" yaml:"company_sizes"`
	RevenueBands []string `json:"revenueBands,omitempty" yaml:"revenue_bands"`
	Locations    []string `json:"locations" yaml:"locations"`
	TargetTitles []string `json:"targetTitles" yaml:"target_titles"`
	// AvoidList is a comma-separated list of company-name terms to steer away from.
	AvoidList string `json:"avoidList,omitempty" yaml:"avoid_list"`
}

// IsNationwide reports whether the location scope covers the whole country.
func (p Profile) IsNationwide() bool {
	for _, loc := range p.Locations {
		l := strings.ToLower(strings.TrimSpace(loc))
		for _, m := range nationwideMarkers {
			if l == m {
				return true
			}
		}
	}
	return false
}

// AvoidTerms splits the avoid list into trimmed, non-empty terms.
func (p Profile) AvoidTerms() []string {
	var out []string
	for _, t := range strings.Split(p.AvoidList, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Validate returns the list of problems that make the profile unusable for discovery.
func (p Profile) Validate() []string {
	var problems []string
	if len(p.Industries) == 0 {
		problems = append(problems, "at least one industry is required")
	}
	if len(p.Locations) == 0 {
		problems = append(problems, "at least one location (or \"nationwide\") is required")
	}
	if len(p.TargetTitles) == 0 {
		problems = append(problems, "at least one target title is required")
	}
	for _, s := range p.CompanySizes {
		if _, ok := ParseSizeBand(s); !ok {
			problems = append(problems, "unrecognized company size band "+s)
		}
	}
	return problems
}
