package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mission-cli/internal/export"
	"github.com/sells-group/mission-cli/pkg/notion"
	sfpkg "github.com/sells-group/mission-cli/pkg/salesforce"
)

var (
	exportXLSX       string
	exportNotion     bool
	exportSalesforce bool
)

var missionExportCmd = &cobra.Command{
	Use:   "export <mission-id>",
	Short: "Export the confirmed ranked contacts",
	Long:  "Writes the confirmed ranking to an XLSX file and optionally to the Notion lead database and Salesforce Leads.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initMission(ctx, "local")
		if err != nil {
			return err
		}
		defer env.Close()

		sinks, err := exportSinks(args[0])
		if err != nil {
			return err
		}

		o := env.NewOrchestrator()
		if err := o.Resume(ctx, args[0]); err != nil {
			return err
		}
		contacts, err := o.FinalContacts()
		if err != nil {
			return err
		}
		mc := o.Context()

		var failed int
		for _, s := range sinks {
			res, err := s.Export(ctx, mc, contacts)
			if err != nil {
				zap.L().Error("export failed", zap.String("sink", s.Name()), zap.Error(err))
				failed++
				continue
			}
			printExportResult(os.Stdout, res)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d exports failed", failed, len(sinks))
		}
		return nil
	},
}

// printExportResult reports one sink's counts and the contacts it rejected.
func printExportResult(w io.Writer, res export.Result) {
	fmt.Fprintf(w, "%s: %d created, %d updated, %d failed\n", res.Sink, res.Created, res.Updated, len(res.Failed))
	if len(res.Failed) > 0 {
		fmt.Fprintf(w, "  failed contacts: %s\n", strings.Join(res.Failed, ", "))
	}
}

func exportSinks(missionID string) ([]export.Sink, error) {
	path := exportXLSX
	if path == "" {
		path = filepath.Join(".", fmt.Sprintf("mission-%s.xlsx", missionID))
	}
	sinks := []export.Sink{export.XLSXSink{Path: path}}

	if exportNotion {
		if err := cfg.Validate("notion"); err != nil {
			return nil, err
		}
		sinks = append(sinks, export.NotionSink{
			Client: notion.NewClient(cfg.Notion.Token, notion.WithRateLimit(cfg.Notion.RateLimit)),
			DBID:   cfg.Notion.LeadDB,
		})
	}
	if exportSalesforce {
		if err := cfg.Validate("salesforce"); err != nil {
			return nil, err
		}
		sf, err := sfpkg.Connect(sfpkg.Config{
			LoginURL: cfg.Salesforce.LoginURL,
			Username: cfg.Salesforce.Username,
			ClientID: cfg.Salesforce.ClientID,
			KeyPath:  cfg.Salesforce.KeyPath,
		}, sfpkg.WithRateLimit(cfg.Salesforce.RateLimit))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, export.SalesforceSink{Client: sf, LeadSource: cfg.Salesforce.LeadSource})
	}
	return sinks, nil
}

func init() {
	missionExportCmd.Flags().StringVar(&exportXLSX, "xlsx", "", "XLSX output path (default mission-<id>.xlsx)")
	missionExportCmd.Flags().BoolVar(&exportNotion, "notion", false, "also upsert contacts into the Notion lead database")
	missionExportCmd.Flags().BoolVar(&exportSalesforce, "salesforce", false, "also upsert contacts as Salesforce Leads")
}
