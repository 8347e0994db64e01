package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sells-group/mission-cli/internal/mission"
	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/phase"
)

func printStatus(w io.Writer, st mission.Status) {
	fmt.Fprintf(w, "Mission %s (%s), account %s, current phase %s\n",
		st.Mission.ID, st.Mission.Status, st.Mission.AccountID, st.Mission.CurrentPhase)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Phase", "State", "Progress", "Total", "Accepted", "Rejected", "Message"})
	for _, p := range st.Phases {
		accepted, rejected := "", ""
		if p.Analytics.Review != nil {
			accepted = fmt.Sprint(p.Analytics.Review.Accepted)
			rejected = fmt.Sprint(p.Analytics.Review.Rejected)
		}
		msg := p.Message
		if p.Warning != "" {
			msg = strings.TrimSpace(msg + " " + p.Warning)
		}
		tw.AppendRow(table.Row{
			p.Phase, p.State,
			fmt.Sprintf("%d/%d", p.Progress.CurrentCard, p.Progress.TotalCards),
			p.Analytics.TotalCount, accepted, rejected, msg,
		})
	}
	tw.Render()
}

func printAnalytics(w io.Writer, p phase.Status) {
	a := p.Analytics
	if len(a.ScoreHistogram) > 0 {
		fmt.Fprintf(w, "scores: %s\n", joinCounts(a.ScoreHistogram))
	}
	if len(a.Industries) > 0 {
		fmt.Fprintf(w, "industries: %s\n", joinCounts(a.Industries))
	}
	if a.Review == nil {
		return
	}
	for _, rc := range a.Review.AcceptReasons {
		fmt.Fprintf(w, "  + %s (%d)\n", rc.Reason, rc.Count)
	}
	for _, rc := range a.Review.RejectReasons {
		fmt.Fprintf(w, "  - %s (%d)\n", rc.Reason, rc.Count)
	}
}

func joinCounts(m map[string]int) string {
	tw := table.NewWriter()
	row := table.Row{}
	hdr := table.Row{}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		hdr = append(hdr, k)
		row = append(row, m[k])
	}
	tw.AppendHeader(hdr)
	tw.AppendRow(row)
	tw.SetStyle(table.StyleLight)
	return "\n" + tw.Render()
}

func printCard(w io.Writer, card mission.Card) {
	switch {
	case card.Company != nil:
		c := card.Company
		fmt.Fprintf(w, "\n[%s] %s\n", card.Phase, c.Name)
		fmt.Fprintf(w, "  %s | %d employees | %s\n", c.Industry, c.EmployeeCount, c.Location)
		if c.Website != "" {
			fmt.Fprintf(w, "  %s\n", c.Website)
		}
		if c.MatchScore != nil {
			fmt.Fprintf(w, "  score %d: %s\n", *c.MatchScore, c.MatchReason)
		}
	case card.Contact != nil:
		c := card.Contact
		fmt.Fprintf(w, "\n[%s] %s, %s at %s\n", card.Phase, c.Name, c.Title, c.Company.Name)
		if c.MatchScore != nil {
			fmt.Fprintf(w, "  score %d (%s)\n", *c.MatchScore, c.ScoreSource)
		}
		for _, v := range []*string{c.Email, c.Phone, c.LinkedIn} {
			if v != nil && *v != "" {
				fmt.Fprintf(w, "  %s\n", *v)
			}
		}
	}
}

func printContacts(w io.Writer, contacts []model.Contact) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Rank", "ID", "Name", "Title", "Company", "Score", "Source", "Email"})
	for _, c := range contacts {
		score, email := "", ""
		if c.MatchScore != nil {
			score = fmt.Sprint(*c.MatchScore)
		}
		if c.Email != nil {
			email = *c.Email
		}
		tw.AppendRow(table.Row{c.Rank, c.ID, c.Name, c.Title, c.Company.Name, score, c.ScoreSource, email})
	}
	tw.Render()
}

func printMissions(w io.Writer, missions []model.Mission) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Account", "Profile", "Phase", "Status", "Updated"})
	for _, m := range missions {
		name := m.Profile.Name
		if name == "" {
			name = strings.Join(m.Profile.Industries, ", ")
		}
		tw.AppendRow(table.Row{m.ID, m.AccountID, name, m.CurrentPhase, m.Status, m.UpdatedAt.Format("2006-01-02 15:04")})
	}
	tw.Render()
}
