package collab

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sells-group/mission-cli/internal/model"
)

// flexInt accepts numbers, numeric strings, and size bands ("51-200",
// "1,000+"). Ranges decode to their midpoint, open bands to their floor.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] != '"' {
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			*f = 0
			return nil
		}
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = flexInt(parseCount(s))
	return nil
}

func parseCount(s string) int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	band, ok := model.ParseSizeBand(s)
	if !ok {
		return 0
	}
	if band.Open {
		return band.Min
	}
	return (band.Min + band.Max) / 2
}

// nullString decodes JSON null, "", and "null"/"n/a" placeholders to nil.
type nullString struct{ v *string }

func (n *nullString) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	if s == nil {
		n.v = nil
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(*s)) {
	case "", "null", "n/a", "none", "unknown":
		n.v = nil
	default:
		v := strings.TrimSpace(*s)
		n.v = &v
	}
	return nil
}

type companyJSON struct {
	Name          string  `json:"name"`
	Industry      string  `json:"industry"`
	EmployeeCount flexInt `json:"employee_count"`
	Location      string  `json:"location"`
	Website       string  `json:"website"`
	FoundedYear   flexInt `json:"founded_year"`
}

type personJSON struct {
	CompanyIndex flexInt    `json:"company_index"`
	Name         string     `json:"name"`
	Title        string     `json:"title"`
	Seniority    string     `json:"seniority"`
	Email        nullString `json:"email"`
	Phone        nullString `json:"phone"`
	LinkedIn     nullString `json:"linkedin"`
}

type scoreJSON struct {
	Index  flexInt `json:"index"`
	Score  flexInt `json:"score"`
	Reason string  `json:"reason"`
}

type rankJSON struct {
	Index     flexInt  `json:"index"`
	Score     *flexInt `json:"score"`
	Reasoning string   `json:"reasoning"`
}
