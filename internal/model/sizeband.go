package model

import (
	"strconv"
	"strings"
)

// SizeBand is an inclusive employee-count range. Only the "N+" form is
// open-ended; Max is ignored when Open is set.
type SizeBand struct {
	Label string
	Min   int
	Max   int
	Open  bool
}

// Contains reports whether n falls inside the band (bounds inclusive).
func (b SizeBand) Contains(n int) bool {
	if n < b.Min {
		return false
	}
	return b.Open || n <= b.Max
}

// ParseSizeBand parses labels such as "51-200", "1,001-5,000", "1000+" or "10".
func ParseSizeBand(label string) (SizeBand, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(label), ",", "")
	s = strings.TrimSuffix(strings.ToLower(s), " employees")
	if s == "" {
		return SizeBand{}, false
	}

	if strings.HasSuffix(s, "+") {
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(s, "+")))
		if err != nil {
			return SizeBand{}, false
		}
		return SizeBand{Label: label, Min: n, Open: true}, true
	}

	if lo, hi, ok := strings.Cut(s, "-"); ok {
		min, err1 := strconv.Atoi(strings.TrimSpace(lo))
		max, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil || max < min {
			return SizeBand{}, false
		}
		return SizeBand{Label: label, Min: min, Max: max}, true
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return SizeBand{}, false
	}
	return SizeBand{Label: label, Min: n, Max: n}, true
}

// SizeBandFor returns the label of the first band containing n, or "unknown".
func SizeBandFor(n int, labels []string) string {
	for _, l := range labels {
		if b, ok := ParseSizeBand(l); ok && b.Contains(n) {
			return b.Label
		}
	}
	return "unknown"
}
