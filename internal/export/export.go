// Package export hands a confirmed ranked contact list to downstream tools:
// an XLSX workbook, a Notion database, or Salesforce Leads.
package export

import (
	"context"
	"strconv"
	"strings"

	"github.com/sells-group/mission-cli/internal/model"
)

// Result summarizes one export.
type Result struct {
	Sink    string   `json:"sink"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

// Sink receives the final ranked list of a mission.
type Sink interface {
	Name() string
	Export(ctx context.Context, mc model.MissionContext, contacts []model.Contact) (Result, error)
}

// Columns is the flat layout shared by the tabular exports.
var Columns = []string{
	"Rank", "Name", "Title", "Company", "Industry", "Employees", "Location",
	"Email", "Phone", "LinkedIn", "Score", "Score Source", "Reason",
}

// Row flattens c into Columns order.
func Row(c model.Contact) []string {
	score := ""
	if c.MatchScore != nil {
		score = strconv.Itoa(*c.MatchScore)
	}
	employees := ""
	if c.Company.EmployeeCount > 0 {
		employees = strconv.Itoa(c.Company.EmployeeCount)
	}
	return []string{
		strconv.Itoa(c.Rank),
		c.Name,
		c.Title,
		c.Company.Name,
		c.Company.Industry,
		employees,
		c.Company.Location,
		deref(c.Email),
		deref(c.Phone),
		deref(c.LinkedIn),
		score,
		string(c.ScoreSource),
		c.MatchReason,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// splitName splits a full name into first and last. A single word is the
// last name, which Salesforce requires.
func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", "Unknown"
	case 1:
		return "", parts[0]
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}
