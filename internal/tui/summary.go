package tui

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"imgpilot/internal/processor"
)

type SummaryRow struct {
	Label string
	Value string
}

var printer = message.NewPrinter(language.English)

// FormatBytes renders n with thousands separators, e.g. "1,048,576 B".
func FormatBytes(n int64) string {
	return printer.Sprintf("%d B", n)
}

// ReportRows summarises a batch report.
func ReportRows(r processor.Report) []SummaryRow {
	rows := []SummaryRow{
		{Label: "Outputs written", Value: printer.Sprintf("%d", r.Succeeded)},
		{Label: "Failed", Value: printer.Sprintf("%d", r.Failed)},
	}
	if r.Cancelled > 0 {
		rows = append(rows, SummaryRow{Label: "Cancelled", Value: printer.Sprintf("%d", r.Cancelled)})
	}
	rows = append(rows,
		SummaryRow{Label: "Original size", Value: FormatBytes(r.BytesBefore)},
		SummaryRow{Label: "Output size", Value: FormatBytes(r.BytesAfter)},
		SummaryRow{Label: "Saved", Value: fmt.Sprintf("%.1f%%", r.SavedPercent())},
	)
	return rows
}

// RenderFailures lists every failed work unit, one per line.
func RenderFailures(r processor.Report) string {
	var lines []string
	for _, res := range r.Results {
		if res.Status == processor.StatusSuccess {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %s",
			failStyle.Render("✗"),
			labelStyle.Render(res.Source+" → "+res.Target.String()),
			warnStyle.Render(string(res.ErrorKind)),
			dimStyle.Render(res.Message),
		))
	}
	return strings.Join(lines, "\n")
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
