package export

import (
	"context"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"

	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/pkg/notion"
)

// contactKey is the Notion property contacts are matched on across re-exports.
const contactKey = "Contact ID"

// NotionSink upserts one page per contact into a Notion database.
type NotionSink struct {
	Client notion.Client
	DBID   string
}

func (s NotionSink) Name() string { return "notion" }

func (s NotionSink) Export(ctx context.Context, mc model.MissionContext, contacts []model.Contact) (Result, error) {
	res := Result{Sink: s.Name()}
	for _, c := range contacts {
		created, err := notion.Upsert(ctx, s.Client, s.DBID, contactKey, c.ID, contactProperties(mc, c))
		if err != nil {
			if ctx.Err() != nil {
				return res, err
			}
			zap.L().Warn("export: notion upsert failed", zap.String("contact_id", c.ID), zap.Error(err))
			res.Failed = append(res.Failed, c.ID)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func contactProperties(mc model.MissionContext, c model.Contact) notionapi.Properties {
	props := notionapi.Properties{
		"Name":      notion.Title(c.Name),
		contactKey:  notion.RichText(c.ID),
		"Mission":   notion.RichText(mc.MissionID),
		"Title":     notion.RichText(c.Title),
		"Company":   notion.RichText(c.Company.Name),
		"Rank":      notion.Number(float64(c.Rank)),
		"Score":     notion.Number(float64(max(c.Score(), 0))),
		"Reason":    notion.RichText(c.MatchReason),
		"Seniority": notion.RichText(c.Seniority),
	}
	if c.ScoreSource != "" {
		props["Score Source"] = notion.Select(string(c.ScoreSource))
	}
	if c.HasEmail() {
		props["Email"] = notion.Email(*c.Email)
	}
	if c.HasPhone() {
		props["Phone"] = notion.Phone(*c.Phone)
	}
	if c.HasLinkedIn() {
		props["LinkedIn"] = notion.URL(*c.LinkedIn)
	}
	return props
}
