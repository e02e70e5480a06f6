package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/wsclean/internal/cleanup"
	"github.com/mattjoyce/wsclean/internal/fleet"
	"github.com/mattjoyce/wsclean/internal/runlog"
)

// theme keeps the CLI styling in one place.
type theme struct {
	Title  lipgloss.Style
	Node   lipgloss.Style
	Path   lipgloss.Style
	Dim    lipgloss.Style
	OK     lipgloss.Style
	Failed lipgloss.Style
	Box    lipgloss.Style
}

func newTheme() theme {
	return theme{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")),
		Node:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5C07B")),
		Path:   lipgloss.NewStyle().PaddingLeft(2),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		OK:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Failed: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 1),
	}
}

// renderPlan prints the workspaces a run would clear, grouped by node.
func renderPlan(w io.Writer, job, node string, plan *cleanup.Multimap) {
	t := newTheme()
	var b strings.Builder

	b.WriteString(t.Title.Render(fmt.Sprintf("Cleanup plan for %s", job)))
	b.WriteString("\n")
	b.WriteString(t.Dim.Render(fmt.Sprintf("running on %s", fleet.DisplayName(node))))
	b.WriteString("\n\n")

	if plan.IsEmpty() {
		b.WriteString(t.Dim.Render("no workspaces to clean"))
	} else {
		for i, n := range plan.Nodes() {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(t.Node.Render(fleet.DisplayName(n)))
			for _, p := range plan.Paths(n) {
				b.WriteString("\n")
				b.WriteString(t.Path.Render(p))
			}
		}
		b.WriteString("\n\n")
		b.WriteString(t.Dim.Render(fmt.Sprintf("%d workspace(s) on %d node(s)", plan.Len(), plan.NodeCount())))
	}

	fmt.Fprintln(w, t.Box.Render(b.String()))
}

// renderRuns prints one line per run.
func renderRuns(w io.Writer, runs []runlog.Entry) {
	t := newTheme()
	if len(runs) == 0 {
		fmt.Fprintln(w, t.Dim.Render("no cleanup runs recorded"))
		return
	}
	fmt.Fprintln(w, t.Title.Render(fmt.Sprintf("%-20s  %-24s  %-5s  %-12s  %-10s  %s",
		"STARTED", "JOB", "PHASE", "NODE", "STATUS", "DELETED/FAILED")))
	for _, r := range runs {
		status := t.OK.Render(fmt.Sprintf("%-10s", r.Status))
		if r.Status != cleanup.StatusCompleted {
			status = t.Failed.Render(fmt.Sprintf("%-10s", r.Status))
		}
		fmt.Fprintf(w, "%-20s  %-24s  %-5s  %-12s  %s  %d/%d\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Job, r.Phase, r.Node, status, r.Deleted, r.Failed)
	}
}

// renderResult prints the summary of a finished run.
func renderResult(w io.Writer, res cleanup.Result) {
	t := newTheme()
	status := t.OK.Render(res.Status)
	if res.Status != cleanup.StatusCompleted {
		status = t.Failed.Render(res.Status)
	}
	fmt.Fprintf(w, "%s-build cleanup of %s %s (%s): %d deleted, %d failed, %d node(s) skipped in %s\n",
		res.Phase.Title(), res.Job, status, res.Outcome, res.Deleted, res.Failed, res.SkippedNodes,
		res.Duration.Round(time.Millisecond))
	if res.Error != "" {
		fmt.Fprintln(w, t.Dim.Render("error: "+res.Error))
	}
}
