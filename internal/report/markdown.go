package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

// IssueFileName returns the Markdown file name for an issue
func IssueFileName(number int) string {
	return fmt.Sprintf("%d.md", number)
}

// WriteIssueDocument renders one issue with its comment thread
func WriteIssueDocument(w io.Writer, rec domain.IssueRecord) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# Issue #%d: %s\n\n", rec.Number, rec.Title)
	fmt.Fprintf(bw, "**GitHub URL:** %s  \n", rec.URL)
	fmt.Fprintf(bw, "**Created:** %s  \n", rec.CreatedAt.UTC().Format("2006-01-02"))
	fmt.Fprintf(bw, "**Author:** %s  \n", rec.Author)
	fmt.Fprintf(bw, "**State:** %s  \n", rec.State)
	fmt.Fprintf(bw, "**Labels:** %s  \n\n", strings.Join(rec.Labels, "; "))
	fmt.Fprint(bw, "---\n\n")

	fmt.Fprint(bw, "## Issue Description\n\n")
	fmt.Fprintf(bw, "%s\n\n", rec.Body)
	fmt.Fprint(bw, "---\n\n")

	fmt.Fprint(bw, "## Comments\n\n")
	if len(rec.Comments) == 0 {
		fmt.Fprint(bw, "*No comments*\n")
	}
	for _, c := range rec.Comments {
		fmt.Fprintf(bw, "### Comment by **%s** on %s\n\n", c.Author, c.CreatedAt.UTC().Format("2006-01-02"))
		fmt.Fprintf(bw, "%s\n\n", c.Body)
	}

	return bw.Flush()
}

// WriteFailedIssueDocument renders the placeholder for an issue that could
// not be fetched
func WriteFailedIssueDocument(w io.Writer, f domain.Failure) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# Issue #%d: [FAILED TO FETCH]\n\n", f.Target.Number)
	fmt.Fprintf(bw, "**GitHub URL:** https://github.com/%s/%s/issues/%d  \n", f.Target.Owner, f.Target.Repo, f.Target.Number)
	fmt.Fprintf(bw, "**Status:** Failed to fetch issue details (%s)  \n\n", f.Kind)
	fmt.Fprint(bw, "---\n\n")
	fmt.Fprint(bw, "## Error\n\n")
	fmt.Fprintf(bw, "Could not retrieve issue data: %s\n", f.Message)

	return bw.Flush()
}
