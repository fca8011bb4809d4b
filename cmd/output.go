package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/courtrush/courtrush/pkg/orchestrator"
	"github.com/courtrush/courtrush/pkg/search"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))
	weekendStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e0af68"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
)

// Cells are padded before styling so that escape codes do not break the
// column widths.
func cell(style lipgloss.Style, width int, s string) string {
	return style.Render(fmt.Sprintf("%-*s", width, s))
}

func printReport(w io.Writer, r *orchestrator.BatchReport) {
	title := "Reservation results"
	if r.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(w, headerStyle.Render(title))
	fmt.Fprintln(w, cell(headerStyle, 12, "DATE")+cell(headerStyle, 8, "HOUR")+cell(headerStyle, 7, "COURT")+headerStyle.Render("RESULT"))
	for _, res := range r.Results {
		style, mark := failureStyle, "FAIL"
		if res.Success {
			style, mark = successStyle, "OK"
		}
		fmt.Fprintln(w,
			cell(lipgloss.NewStyle(), 12, res.Target.DateString())+
				cell(lipgloss.NewStyle(), 8, fmt.Sprintf("%02d:00", res.Target.Hour))+
				cell(lipgloss.NewStyle(), 7, fmt.Sprintf("%d", res.Target.Court))+
				style.Render(mark+"  "+res.Message))
	}
	if r.Dropped > 0 {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d target(s) dropped after failed login", r.Dropped)))
	}
	summary := r.Message
	if summary == "" {
		summary = r.Summary()
	}
	style := failureStyle
	if r.Success() {
		style = successStyle
	}
	fmt.Fprintln(w, style.Render(summary))
}

func printSearch(w io.Writer, r *search.Report) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d-%02d: %d free slot(s)", r.Year, r.Month, r.Total)))
	if r.Total > 0 {
		fmt.Fprintln(w, cell(headerStyle, 12, "DATE")+cell(headerStyle, 5, "DAY")+cell(headerStyle, 7, "COURT")+headerStyle.Render("TIME"))
	}
	for _, h := range r.Results {
		style := lipgloss.NewStyle()
		if h.IsWeekend {
			style = weekendStyle
		}
		fmt.Fprintln(w, cell(style, 12, h.Date)+cell(style, 5, h.Day)+cell(style, 7, fmt.Sprintf("%d", h.Court))+style.Render(h.Time))
	}
	for _, d := range r.SkippedDates {
		fmt.Fprintln(w, mutedStyle.Render("skipped "+d+" (every slot free, likely closed)"))
	}
	for _, p := range r.FailedPages {
		fmt.Fprintln(w, failureStyle.Render("page failed: "+p))
	}
}
