package export

import (
	"context"
	"fmt"

	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/pkg/salesforce"
)

// DefaultLeadSource tags leads created by a mission.
const DefaultLeadSource = "Lead Mission"

// SalesforceSink upserts contacts as Salesforce Leads, matched on email.
type SalesforceSink struct {
	Client     salesforce.Client
	LeadSource string
}

func (s SalesforceSink) Name() string { return "salesforce" }

func (s SalesforceSink) Export(ctx context.Context, mc model.MissionContext, contacts []model.Contact) (Result, error) {
	source := s.LeadSource
	if source == "" {
		source = DefaultLeadSource
	}
	leads := make([]salesforce.LeadFields, len(contacts))
	for i, c := range contacts {
		leads[i] = salesforce.LeadFields{Email: deref(c.Email), Fields: leadFields(mc, c, source)}
	}
	up, err := salesforce.UpsertLeads(ctx, s.Client, leads)
	res := Result{Sink: s.Name(), Created: up.Created, Updated: up.Updated, Failed: up.Failed}
	return res, err
}

func leadFields(mc model.MissionContext, c model.Contact, source string) map[string]any {
	first, last := splitName(c.Name)
	company := c.Company.Name
	if company == "" {
		company = "Unknown"
	}
	f := map[string]any{
		"FirstName":   first,
		"LastName":    last,
		"Company":     company,
		"Title":       c.Title,
		"LeadSource":  source,
		"Description": fmt.Sprintf("Mission %s rank %d, score %d (%s). %s", mc.MissionID, c.Rank, max(c.Score(), 0), c.ScoreSource, c.MatchReason),
	}
	if c.Company.Industry != "" {
		f["Industry"] = c.Company.Industry
	}
	if c.Company.EmployeeCount > 0 {
		f["NumberOfEmployees"] = c.Company.EmployeeCount
	}
	if c.HasEmail() {
		f["Email"] = *c.Email
	}
	if c.HasPhone() {
		f["Phone"] = *c.Phone
	}
	return f
}
