package model

import (
	"fmt"
	"strings"
)

// Calibration carries what the human taught Discovery's validation review
// forward into Scoring.
type Calibration struct {
	AcceptedExamples []string `json:"acceptedExamples,omitempty"`
	RejectedExamples []string `json:"rejectedExamples,omitempty"`
	AcceptReasons    []string `json:"acceptReasons,omitempty"`
	RejectReasons    []string `json:"rejectReasons,omitempty"`
}

// Empty reports whether there is nothing to calibrate with.
func (c Calibration) Empty() bool {
	return len(c.AcceptedExamples) == 0 && len(c.RejectedExamples) == 0 &&
		len(c.AcceptReasons) == 0 && len(c.RejectReasons) == 0
}

// Notes renders the calibration as prompt text. Empty calibration renders "".
func (c Calibration) Notes() string {
	if c.Empty() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Reviewer calibration from a validation sample:\n")
	line := func(label string, items []string) {
		if len(items) > 0 {
			fmt.Fprintf(&sb, "- %s: %s\n", label, strings.Join(items, "; "))
		}
	}
	line("Good fits", c.AcceptedExamples)
	line("Poor fits", c.RejectedExamples)
	line("Why good", c.AcceptReasons)
	line("Why poor", c.RejectReasons)
	return sb.String()
}
