package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"audiencedeck/cmd/deck/ui"
	"audiencedeck/internal/api"
)

var refreshReport bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render an audience report in the terminal",
	Long: `Builds a markdown audience report from the snapshot cache and renders
it with terminal styling. Works offline; pass --refresh to fetch fresh
data first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(stateDir)
		if err != nil {
			return err
		}
		defer a.close()

		if refreshReport {
			ctx, cancel := commandContext()
			defer cancel()
			if _, err := a.LoadInsights(ctx); err != nil {
				return err
			}
		}

		accounts, err := a.snapshot.Accounts()
		if err != nil {
			return err
		}
		records, err := a.snapshot.Audiences()
		if err != nil {
			return err
		}

		md := buildReport(accounts, records)

		style := "light"
		if ui.ResolveTheme(a.cfg.UI.Theme).IsDark {
			style = "dark"
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStylePath(style),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return err
		}
		out, err := renderer.Render(md)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

// buildReport assembles the markdown source for the report.
func buildReport(accounts []api.ConnectedAccount, records []api.AudienceRecord) string {
	var sb strings.Builder
	sb.WriteString("# Audience Report\n\n")

	if len(accounts) == 0 {
		sb.WriteString("No accounts connected yet. Run `deck connect` to link one.\n")
		return sb.String()
	}

	byAccount := make(map[string]api.AudienceRecord, len(records))
	for _, rec := range records {
		byAccount[rec.AccountID] = rec
	}

	sb.WriteString("## Connected Accounts\n\n")
	sb.WriteString("| Platform | Username | Connected |\n")
	sb.WriteString("|----------|----------|----------|\n")
	for _, acct := range accounts {
		sb.WriteString(fmt.Sprintf("| %s | @%s | %s |\n",
			acct.Platform, acct.Username, acct.CreatedAt.Format("2006-01-02")))
	}
	sb.WriteString("\n")

	for _, acct := range accounts {
		rec, ok := byAccount[acct.ID]
		if !ok || rec.Demographics.Empty() {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s · @%s\n\n", acct.Platform, acct.Username))
		sb.WriteString(fmt.Sprintf("_Fetched %s_\n\n", rec.FetchedAt.Format("2006-01-02 15:04")))

		writeSplit(&sb, "Gender", rec.Demographics.Gender, 0)
		writeSplit(&sb, "Age", rec.Demographics.Age, 0)
		writeSplit(&sb, "Top Countries", rec.Demographics.Countries, 8)
		writeSplit(&sb, "Top Cities", rec.Demographics.Cities, 8)
	}

	return sb.String()
}

func writeSplit(sb *strings.Builder, title string, data map[string]float64, limit int) {
	if len(data) == 0 {
		return
	}
	type row struct {
		label string
		share float64
	}
	rows := make([]row, 0, len(data))
	for label, share := range data {
		rows = append(rows, row{label, share})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].share != rows[j].share {
			return rows[i].share > rows[j].share
		}
		return rows[i].label < rows[j].label
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	sb.WriteString(fmt.Sprintf("### %s\n\n", title))
	sb.WriteString("| Segment | Share |\n|---------|-------|\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %.1f%% |\n", r.label, r.share))
	}
	sb.WriteString("\n")
}

func init() {
	reportCmd.Flags().BoolVar(&refreshReport, "refresh", false, "fetch fresh data before rendering")
}
