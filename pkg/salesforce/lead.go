package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lead is a Salesforce Lead keyed by email for de-duplication.
type Lead struct {
	ID    string `json:"Id" salesforce:"Id"`
	Email string `json:"Email" salesforce:"Email"`
}

// LeadFields is one lead to push. Email is the match key; leads without an
// email are always inserted.
type LeadFields struct {
	Email  string
	Fields map[string]any
}

// UpsertResult summarizes a lead push.
type UpsertResult struct {
	Created int
	Updated int
	Failed  []string
}

// FindLeadsByEmail returns Lead IDs keyed by lower-cased email.
func FindLeadsByEmail(ctx context.Context, c Client, emails []string) (map[string]string, error) {
	out := make(map[string]string, len(emails))
	for start := 0; start < len(emails); start += maxBatchSize {
		end := min(start+maxBatchSize, len(emails))
		quoted := make([]string, 0, end-start)
		for _, e := range emails[start:end] {
			quoted = append(quoted, "'"+escapeSoql(e)+"'")
		}
		soql := fmt.Sprintf("SELECT Id, Email FROM Lead WHERE Email IN (%s)", strings.Join(quoted, ", "))
		var leads []Lead
		if err := c.Query(ctx, soql, &leads); err != nil {
			return nil, eris.Wrap(err, "sf: find leads by email")
		}
		for _, l := range leads {
			out[strings.ToLower(l.Email)] = l.ID
		}
	}
	return out, nil
}

// UpsertLeads updates leads whose email already exists and inserts the rest,
// in batches of the collections limit.
func UpsertLeads(ctx context.Context, c Client, leads []LeadFields) (UpsertResult, error) {
	var res UpsertResult
	if len(leads) == 0 {
		return res, nil
	}

	var emails []string
	for _, l := range leads {
		if l.Email != "" {
			emails = append(emails, l.Email)
		}
	}
	existing, err := FindLeadsByEmail(ctx, c, emails)
	if err != nil {
		return res, err
	}

	var inserts []map[string]any
	var updates []CollectionRecord
	for _, l := range leads {
		if id, ok := existing[strings.ToLower(l.Email)]; ok && l.Email != "" {
			updates = append(updates, CollectionRecord{ID: id, Fields: l.Fields})
			continue
		}
		inserts = append(inserts, l.Fields)
	}

	for start := 0; start < len(inserts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(inserts))
		results, err := c.InsertCollection(ctx, "Lead", inserts[start:end])
		if err != nil {
			return res, eris.Wrapf(err, "sf: insert leads %d-%d", start, end)
		}
		tally(&res.Created, &res.Failed, results)
	}
	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))
		results, err := c.UpdateCollection(ctx, "Lead", updates[start:end])
		if err != nil {
			return res, eris.Wrapf(err, "sf: update leads %d-%d", start, end)
		}
		tally(&res.Updated, &res.Failed, results)
	}
	return res, nil
}

func tally(ok *int, failed *[]string, results []CollectionResult) {
	for _, r := range results {
		if r.Success {
			*ok++
			continue
		}
		*failed = append(*failed, strings.Join(r.Errors, "; "))
	}
}

// escapeSoql escapes single quotes in SOQL string literals.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
