package review

import (
	"sort"
	"strings"

	"github.com/sells-group/mission-cli/internal/model"
)

// Taxonomy lists the reason tags offered for each action in a phase. Tags
// outside the taxonomy are kept as free text.
type Taxonomy struct {
	Accept []string `json:"accept"`
	Reject []string `json:"reject"`
}

// Known reports whether tag is one of the offered tags for action.
func (t Taxonomy) Known(action model.Action, tag string) bool {
	tags := t.Reject
	if action == model.ActionAccept {
		tags = t.Accept
	}
	for _, known := range tags {
		if strings.EqualFold(known, tag) {
			return true
		}
	}
	return false
}

// Normalize trims reasons, drops empties and duplicates, and maps tags onto
// their canonical spelling in the taxonomy.
func (t Taxonomy) Normalize(action model.Action, reasons []string) []string {
	tags := t.Reject
	if action == model.ActionAccept {
		tags = t.Accept
	}

	var out []string
	seen := make(map[string]bool, len(reasons))
	for _, r := range reasons {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		for _, known := range tags {
			if strings.EqualFold(known, r) {
				r = known
				break
			}
		}
		key := strings.ToLower(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// ReasonCount is a reason tag with its frequency.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Summary aggregates a finished review.
type Summary struct {
	Accepted      int           `json:"accepted"`
	Rejected      int           `json:"rejected"`
	AcceptReasons []ReasonCount `json:"acceptReasons"`
	RejectReasons []ReasonCount `json:"rejectReasons"`
}

// Summarize counts decisions and ranks the most common reasons per action,
// most frequent first, ties broken alphabetically. At most limit reasons are
// kept per action; limit <= 0 keeps all.
func Summarize(decisions []model.ReviewDecision, limit int) Summary {
	var s Summary
	accept := map[string]int{}
	reject := map[string]int{}
	for _, d := range decisions {
		counts := reject
		if d.Action == model.ActionAccept {
			s.Accepted++
			counts = accept
		} else {
			s.Rejected++
		}
		for _, r := range d.Reasons {
			counts[r]++
		}
	}
	s.AcceptReasons = topReasons(accept, limit)
	s.RejectReasons = topReasons(reject, limit)
	return s
}

func topReasons(counts map[string]int, limit int) []ReasonCount {
	out := make([]ReasonCount, 0, len(counts))
	for r, n := range counts {
		out = append(out, ReasonCount{Reason: r, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
