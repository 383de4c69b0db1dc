package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pratik-mahalle/costmonitor/internal/domain/report"
)

// stdout receives command output
var stdout io.Writer = os.Stdout

// Table renders data as a formatted table.
type Table struct {
	headers []string
	rows    [][]string
	writer  io.Writer
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		writer:  stdout,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cols ...string) {
	t.rows = append(t.rows, cols)
}

// Render writes the table.
func (t *Table) Render() {
	w := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(t.headers, "\t"))

	sep := make([]string, len(t.headers))
	for i, h := range t.headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))

	for _, row := range t.rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	w.Flush()
}

// isStructured reports whether the output format is json or yaml
func isStructured() bool {
	f := getOutputFormat()
	return f == "json" || f == "yaml"
}

// printOutput prints data in the requested structured format.
func printOutput(data interface{}) error {
	switch getOutputFormat() {
	case "yaml":
		return printYAML(stdout, data)
	default:
		return printJSON(stdout, data)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(data)
}

// printRuns prints run records as a table or structured output
func printRuns(runs ...*report.Run) error {
	if isStructured() {
		if len(runs) == 1 {
			return printOutput(runs[0])
		}
		return printOutput(runs)
	}

	table := NewTable("ID", "STARTED", "TRIGGER", "STATUS", "TOTAL", "ANOMALIES", "ALERTS", "DETAIL")
	for _, r := range runs {
		table.AddRow(
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			string(r.Trigger),
			formatStatus(string(r.Status)),
			"$"+r.TotalCost.StringFixed(2),
			fmt.Sprint(r.AnomalyCount),
			fmt.Sprint(r.AlertCount),
			truncate(runDetail(r), 60),
		)
	}
	table.Render()
	return nil
}

// runDetail is the most useful single fact about a run's outcome
func runDetail(r *report.Run) string {
	switch {
	case r.ErrorMessage != "":
		return r.ErrorMessage
	case r.Reason != "":
		return r.Reason
	case r.ArchiveKey != "":
		return r.ArchiveKey
	default:
		return r.MessageID
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatStatus returns a status string with visual indicator.
func formatStatus(status string) string {
	switch strings.ToLower(status) {
	case "sent":
		return "[+] " + status
	case "failed":
		return "[-] " + status
	case "running":
		return "[*] " + status
	case "skipped":
		return "[~] " + status
	default:
		return status
	}
}
