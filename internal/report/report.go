// Package report renders portfolio and trend results for the CLI as an
// aligned table, CSV, XLSX or JSON.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/trial-workload/internal/model"
)

// Format is an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	}
	return "", eris.Errorf("report: unknown format %q (want table, csv, xlsx or json)", s)
}

var printer = message.NewPrinter(language.English)

// sheet is a titled grid of cells. Numeric cells are float64.
type sheet struct {
	name   string
	header []string
	rows   [][]any
}

var studyHeader = []string{
	"study_id", "study_name", "lifecycle", "recruitment",
	"now", "actuals", "forecast", "band", "setup_pct", "contributors",
}

var coordinatorHeader = []string{"coordinator_id", "load", "baseline", "trend_pct", "band", "studies"}

func portfolioSheets(p model.Portfolio) []sheet {
	studies := sheet{name: "Studies", header: studyHeader}
	for _, s := range p.Studies {
		studies.rows = append(studies.rows, []any{
			s.StudyID, s.StudyName, string(s.Lifecycle), string(s.Recruitment),
			s.Now.Weighted, s.Actuals.Weighted, s.Forecast.Weighted, string(s.Band),
			s.SetupCompletion, float64(s.Metrics.Contributors),
		})
	}

	coords := sheet{name: "Coordinators", header: coordinatorHeader}
	for _, c := range p.Coordinators {
		ids := make([]string, len(c.Studies))
		for i, st := range c.Studies {
			ids[i] = st.StudyID
		}
		coords.rows = append(coords.rows, []any{
			c.CoordinatorID, c.Load, c.Baseline, c.TrendPct, string(c.Band), strings.Join(ids, " "),
		})
	}

	sheets := []sheet{studies, coords}
	if len(p.Excluded) > 0 {
		excluded := sheet{name: "Excluded", header: []string{"study_id", "reason"}}
		for _, e := range p.Excluded {
			excluded.rows = append(excluded.rows, []any{e.StudyID, e.Reason})
		}
		sheets = append(sheets, excluded)
	}
	return sheets
}

func trendSheets(t model.Trend) []sheet {
	s := sheet{name: "Trend", header: []string{"week_start", "actual_points", "forecast_points"}}
	for _, pt := range t.Points {
		s.rows = append(s.rows, []any{pt.WeekStart.String(), pt.ActualPoints, pt.ForecastPoints})
	}
	return []sheet{s}
}

// WritePortfolio renders a portfolio in the given format.
func WritePortfolio(w io.Writer, p model.Portfolio, f Format) error {
	if f == FormatJSON {
		return writeJSON(w, p)
	}
	if f == FormatTable {
		stale := ""
		if p.Stale {
			stale = " (stale)"
		}
		fmt.Fprintf(w, "Portfolio as of %s%s: trend %+.1f%%\n\n", p.AsOf, stale, p.TrendPct)
	}
	if err := write(w, portfolioSheets(p), f); err != nil {
		return err
	}
	if f == FormatTable && len(p.Unallocated) > 0 {
		fmt.Fprintf(w, "\nUnallocated: %s\n", strings.Join(p.Unallocated, ", "))
	}
	return nil
}

// WriteTrend renders a trend series in the given format.
func WriteTrend(w io.Writer, t model.Trend, f Format) error {
	if f == FormatJSON {
		return writeJSON(w, t)
	}
	if f == FormatTable && t.Stale {
		fmt.Fprintln(w, "Trend (stale)")
	}
	return write(w, trendSheets(t), f)
}

func write(w io.Writer, sheets []sheet, f Format) error {
	switch f {
	case FormatTable:
		return writeTable(w, sheets)
	case FormatCSV:
		return writeCSV(w, sheets)
	case FormatXLSX:
		return writeXLSX(w, sheets)
	}
	return eris.Errorf("report: unsupported format %q", f)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "report: encode json")
}

func writeTable(w io.Writer, sheets []sheet) error {
	for i, s := range sheets {
		if i > 0 {
			fmt.Fprintln(w)
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.ToUpper(strings.Join(s.header, "\t")))
		for _, row := range s.rows {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = tableCell(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "report: flush table")
		}
	}
	return nil
}

func tableCell(v any) string {
	switch x := v.(type) {
	case float64:
		return printer.Sprintf("%.1f", x)
	case string:
		if x == "" {
			return "-"
		}
		return x
	}
	return fmt.Sprint(v)
}

// writeCSV writes sheets one after another, each with its header row. A
// blank line separates sheets.
func writeCSV(w io.Writer, sheets []sheet) error {
	for i, s := range sheets {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return eris.Wrap(err, "report: write csv")
			}
		}
		cw := csv.NewWriter(w)
		if err := cw.Write(s.header); err != nil {
			return eris.Wrap(err, "report: write csv header")
		}
		for _, row := range s.rows {
			rec := make([]string, len(row))
			for j, v := range row {
				rec[j] = csvCell(v)
			}
			if err := cw.Write(rec); err != nil {
				return eris.Wrap(err, "report: write csv row")
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return eris.Wrap(err, "report: flush csv")
		}
	}
	return nil
}

func csvCell(v any) string {
	if x, ok := v.(float64); ok {
		return strconv.FormatFloat(x, 'f', 4, 64)
	}
	return fmt.Sprint(v)
}

func writeXLSX(w io.Writer, sheets []sheet) error {
	f := xlsx.NewFile()
	for _, s := range sheets {
		sh, err := f.AddSheet(s.name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %s", s.name)
		}
		hdr := sh.AddRow()
		for _, h := range s.header {
			hdr.AddCell().SetString(h)
		}
		for _, row := range s.rows {
			r := sh.AddRow()
			for _, v := range row {
				cell := r.AddCell()
				if x, ok := v.(float64); ok {
					cell.SetFloat(x)
					continue
				}
				cell.SetString(fmt.Sprint(v))
			}
		}
	}
	return eris.Wrap(f.Write(w), "report: write xlsx")
}
