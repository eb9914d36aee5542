package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/spec-kit/routing-engine/internal/scheduler"
	"github.com/spec-kit/routing-engine/internal/service"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// wantJSON picks JSON when asked to or when stdout is piped.
func wantJSON(cmd *cobra.Command, forced bool) bool {
	return forced || !isTerminal(cmd.OutOrStdout())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

func occupancyCells(o service.Occupancy) table.Row {
	return table.Row{o.Count, o.Capacity, o.Available, fmt.Sprintf("%.1f%%", o.Percentage)}
}

// renderMonitor draws the monitor view as one row per holding area.
func renderMonitor(view *service.MonitorView) string {
	tw := newTable()
	tw.AppendHeader(table.Row{"Area", "Name", "Count", "Capacity", "Available", "Load"})
	tw.AppendRow(table.Row{"SENDER_HOLD", "all departments", view.SenderHold, "-", "-", "-"})
	tw.AppendRow(append(table.Row{"HUB", "shared hub"}, occupancyCells(view.Hub)...))
	tw.AppendSeparator()
	for _, dept := range view.Departments {
		tw.AppendRow(append(table.Row{dept.Code, dept.Name}, occupancyCells(dept.Occupancy)...))
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	tw.SetCaption("generated %s", view.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	return tw.Render()
}

// renderReport draws one cycle's outcome.
func renderReport(report *scheduler.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle %d finished in %s\n", report.Cycle, report.Duration)
	if report.Sender != nil {
		fmt.Fprintf(&b, "sender: %s (hub %d/%d)\n", report.Sender.Message, report.Sender.HubCount, report.Sender.HubLimit)
	}
	if report.Grabber == nil {
		return b.String()
	}

	codes := make([]string, 0, len(report.Grabber.PerDepartment))
	for code := range report.Grabber.PerDepartment {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	tw := newTable()
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(table.Row{"Department", "Moved", "Held", "Result"})
	for _, code := range codes {
		res := report.Grabber.PerDepartment[code]
		result := res.Message
		if res.Error != "" {
			result = "error: " + res.Error
		}
		tw.AppendRow(table.Row{code, res.Moved, strconv.Itoa(res.Count) + "/" + strconv.Itoa(report.Grabber.DeptLimit), result})
	}
	tw.AppendFooter(table.Row{"total", report.Grabber.TotalMoved, "", fmt.Sprintf("%d failed", report.Grabber.Failed)})
	b.WriteString(tw.Render())
	b.WriteString("\n")
	return b.String()
}

func printReport(cmd *cobra.Command, report *scheduler.Report, forceJSON bool) error {
	if wantJSON(cmd, forceJSON) {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), renderReport(report))
	return err
}
