package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

// RenderTopTable prints the first n repositories of an ordered report
func RenderTopTable(w io.Writer, metrics []domain.RepositoryMetrics, n int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Repository", "Health", "Stars", "Commits", "Closed PRs", "Partial"})
	for i, m := range metrics {
		if i == n {
			break
		}
		partial := ""
		if m.Partial {
			partial = fmt.Sprintf("%v", m.MissingMetrics)
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			m.Name,
			strconv.FormatFloat(m.HealthScore, 'f', 1, 64),
			strconv.Itoa(m.StarCount),
			strconv.Itoa(m.CommitsLast30d),
			strconv.Itoa(m.ClosedPRsLast30d),
			partial,
		})
	}
	table.Render()
}

// RenderRunsTable prints archived runs
func RenderRunsTable(w io.Writer, runs []*domain.HarvestRun) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Mode", "Target", "Started", "Status", "Total", "Succeeded", "Failed", "Partial"})
	for _, r := range runs {
		target := r.Owner
		if r.Repo != "" {
			target += "/" + r.Repo
		}
		table.Append([]string{
			r.ID,
			string(r.Mode),
			target,
			r.StartedAt.Format("2006-01-02 15:04"),
			string(r.Status),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Partial),
		})
	}
	table.Render()
}

// RenderFailuresTable prints failures in report order
func RenderFailuresTable(w io.Writer, failures []domain.Failure) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Target", "Reason", "Message"})
	table.SetAutoWrapText(false)
	for _, f := range failures {
		table.Append([]string{f.Target.ID(), string(f.Kind), f.Message})
	}
	table.Render()
}

// RenderIssuesTable prints issue records
func RenderIssuesTable(w io.Writer, records []domain.IssueRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Issue", "Title", "Created", "Author", "Comments"})
	for _, r := range records {
		table.Append([]string{
			"#" + strconv.Itoa(r.Number),
			r.Title,
			r.CreatedAt.Format("2006-01-02"),
			r.Author,
			strconv.Itoa(len(r.Comments)),
		})
	}
	table.Render()
}
