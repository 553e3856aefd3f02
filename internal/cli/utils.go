// Package cli provides output formatting for the lotdocs command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hyperjump/lotdocs/internal/models"
	"github.com/hyperjump/lotdocs/internal/stage"
	"github.com/hyperjump/lotdocs/internal/storage"
	"github.com/jedib0t/go-pretty/v6/table"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n", response.Total, response.Query, response.QueryTime)
	if response.AutoFuzzy {
		fmt.Fprintln(w, "No exact matches; showing fuzzy matches.")
	}
	fmt.Fprintln(w)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	doc := result.Document
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", result.Rank, result.Score)
	if doc.LotName != "" {
		fmt.Fprintf(w, "Lot: %s %s\n", doc.LotID, doc.LotName)
	} else {
		fmt.Fprintf(w, "Lot: %s\n", doc.LotID)
	}
	fmt.Fprintf(w, "File: %s\n", doc.Path)
	for _, f := range result.Fragments {
		fmt.Fprintf(w, "\n  %s\n", strings.ReplaceAll(f, "\n", " "))
	}
	fmt.Fprintln(w)
}

// Status is the state of a working directory: the latest stage outcome per lot and the disk
// usage of each stage directory.
type Status struct {
	Workdir     string                `json:"workdir"`
	Stages      []*models.StageRecord `json:"stages"`
	Usage       []storage.DirUsage    `json:"usage"`
	IndexedDocs *uint64               `json:"indexed_docs,omitempty"`
}

// WriteStatus writes the working directory status to w in the given format.
func WriteStatus(w io.Writer, status *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}

	fmt.Fprintf(w, "Workdir: %s\n\n", status.Workdir)
	if len(status.Stages) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
	} else {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Lot", "Download", "Expand", "Convert", "Updated"})
		for _, row := range stageRows(status.Stages) {
			t.AppendRow(row)
		}
		t.Render()
	}

	fmt.Fprintln(w)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage dir", "Size"})
	var total int64
	for _, u := range status.Usage {
		t.AppendRow(table.Row{u.Name, humanize.Bytes(uint64(u.Bytes))})
		total += u.Bytes
	}
	t.AppendFooter(table.Row{"Total", humanize.Bytes(uint64(total))})
	t.Render()

	if status.IndexedDocs != nil {
		fmt.Fprintf(w, "\nIndexed documents: %d\n", *status.IndexedDocs)
	}
	return nil
}

// stageRows pivots ledger records into one row per lot, lots in sorted order.
func stageRows(records []*models.StageRecord) []table.Row {
	type lotRow struct {
		status  map[string]string
		updated string
	}
	byLot := make(map[string]*lotRow)
	var ids []string
	for _, r := range records {
		row, ok := byLot[r.LotID]
		if !ok {
			row = &lotRow{status: make(map[string]string)}
			byLot[r.LotID] = row
			ids = append(ids, r.LotID)
		}
		row.status[r.Stage] = r.Status
		if ts := r.CreatedAt.Local().Format("2006-01-02 15:04"); ts > row.updated {
			row.updated = ts
		}
	}
	sort.Strings(ids)

	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		row := byLot[id]
		rows = append(rows, table.Row{
			id,
			orDash(row.status[stage.Download]),
			orDash(row.status[stage.Expand]),
			orDash(row.status[stage.Convert]),
			row.updated,
		})
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// WriteConversionResult prints a summary of one conversion run.
func WriteConversionResult(w io.Writer, dst string, res *models.ConversionResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Skipped {
		fmt.Fprintf(w, "Skipped: %s is not empty (use -force to rebuild)\n", dst)
		return nil
	}
	fmt.Fprintf(w, "Converted: %d, ignored: %d, problems: %d\nOutput: %s\n",
		len(res.Converted), len(res.Ignored), len(res.Problem), dst)
	if len(res.Problem) > 0 {
		fmt.Fprintln(w, "\nFiles that could not be converted:")
		for _, p := range res.Problem {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	return nil
}
