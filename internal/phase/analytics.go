package phase

import (
	"fmt"
	"strings"

	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/review"
)

// Analytics summarizes a phase's results and, once finished, its review.
type Analytics struct {
	TotalCount     int             `json:"totalCount"`
	Industries     map[string]int  `json:"industries,omitempty"`
	SizeBands      map[string]int  `json:"sizeBands,omitempty"`
	ScoreHistogram map[string]int  `json:"scoreHistogram,omitempty"`
	WithEmail      int             `json:"withEmail,omitempty"`
	WithPhone      int             `json:"withPhone,omitempty"`
	WithLinkedIn   int             `json:"withLinkedIn,omitempty"`
	Moves          int             `json:"moves,omitempty"`
	Review         *review.Summary `json:"review,omitempty"`
}

func companyAnalytics(companies []model.Company, bands []string) Analytics {
	a := Analytics{
		TotalCount: len(companies),
		Industries: map[string]int{},
		SizeBands:  map[string]int{},
	}
	var scores []int
	for _, c := range companies {
		a.Industries[label(c.Industry)]++
		a.SizeBands[model.SizeBandFor(c.EmployeeCount, bands)]++
		if c.MatchScore != nil {
			scores = append(scores, *c.MatchScore)
		}
	}
	a.ScoreHistogram = histogram(scores)
	return a
}

func contactAnalytics(contacts []model.Contact, bands []string) Analytics {
	a := Analytics{
		TotalCount: len(contacts),
		Industries: map[string]int{},
		SizeBands:  map[string]int{},
	}
	var scores []int
	for _, c := range contacts {
		a.Industries[label(c.Company.Industry)]++
		a.SizeBands[model.SizeBandFor(c.Company.EmployeeCount, bands)]++
		if c.HasEmail() {
			a.WithEmail++
		}
		if c.HasPhone() {
			a.WithPhone++
		}
		if c.HasLinkedIn() {
			a.WithLinkedIn++
		}
		if c.MatchScore != nil {
			scores = append(scores, *c.MatchScore)
		}
	}
	a.ScoreHistogram = histogram(scores)
	return a
}

func label(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}

// histogram buckets scores by tens; 100 lands in "90-100".
func histogram(scores []int) map[string]int {
	if len(scores) == 0 {
		return nil
	}
	h := make(map[string]int)
	for _, s := range scores {
		lo := min(max(s, 0)/10*10, 90)
		hi := lo + 9
		if lo == 90 {
			hi = 100
		}
		h[fmt.Sprintf("%d-%d", lo, hi)]++
	}
	return h
}
