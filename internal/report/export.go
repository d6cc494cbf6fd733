// Package report renders a completed scan's results into the JSON
// schema §6 defines, and an additive XLSX workbook for spreadsheet
// review, one sheet per scanned site.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Statistics is the statistics block of a site report.
type Statistics struct {
	StartTime    string `json:"start_time"`
	RunTimeMS    int64  `json:"run_time_ms"`
	URLs         int    `json:"urls"`
	Fingerprints int    `json:"fingerprints"`
}

// SiteInfo is the site_info block of a site report.
type SiteInfo struct {
	URL     string   `json:"url"`
	Title   string   `json:"title,omitempty"`
	Cookies []string `json:"cookies"`
	IP      string   `json:"ip,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// DataRow is one detected (category, name, version) finding, plus
// whatever auxiliary fields that category's row carries.
type DataRow struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
	Link     string `json:"link,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// SiteReport is one target's complete scan output.
type SiteReport struct {
	Statistics Statistics `json:"statistics"`
	SiteInfo   SiteInfo   `json:"site_info"`
	Data       []DataRow  `json:"data"`
}

// Writer accumulates one SiteReport per scanned target and flushes them
// as a single top-level JSON array (and, optionally, an XLSX workbook)
// at the end of a run — including an error record for targets that
// never resolved, per §6's "continue to the next URL" behavior.
type Writer struct {
	reports []SiteReport
}

// NewWriter creates an empty report writer.
func NewWriter() *Writer { return &Writer{} }

// Add appends a completed site report.
func (w *Writer) Add(r SiteReport) { w.reports = append(w.reports, r) }

// AddError appends an error record for a target whose host could not
// be resolved at all.
func (w *Writer) AddError(url string, err error) {
	w.reports = append(w.reports, SiteReport{
		SiteInfo: SiteInfo{URL: url, Error: err.Error()},
	})
}

// WriteJSON writes every accumulated report as one top-level JSON array.
func (w *Writer) WriteJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w.reports); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// WriteXLSX writes one sheet per site report, each a flat
// category/name/version/link/count table, styled header row, frozen
// and filterable — the additive report format alongside JSON.
func (w *Writer) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"00C853"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})

	columns := []string{"Category", "Name", "Version", "Link", "Count"}

	for i, r := range w.reports {
		sheetName := sanitizeSheetName(fmt.Sprintf("%d_%s", i+1, r.SiteInfo.URL))
		if i == 0 {
			f.SetSheetName("Sheet1", sheetName)
		} else {
			f.NewSheet(sheetName)
		}

		for col, name := range columns {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			f.SetCellValue(sheetName, cell, name)
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		for rowIdx, row := range r.Data {
			values := []interface{}{row.Category, row.Name, row.Version, row.Link, row.Count}
			for col, val := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
				f.SetCellValue(sheetName, cell, val)
			}
		}

		f.SetPanes(sheetName, &excelize.Panes{
			Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
		})
		lastRow := len(r.Data) + 1
		_ = f.AutoFilter(sheetName, fmt.Sprintf("%s!A1:E%d", sheetName, lastRow), nil)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save xlsx: %w", err)
	}
	return nil
}

func sanitizeSheetName(name string) string {
	invalid := []string{"\\", "/", "?", "*", "[", "]", ":"}
	result := name
	for _, ch := range invalid {
		result = strings.ReplaceAll(result, ch, "_")
	}
	if len(result) > 31 {
		result = result[:31]
	}
	return result
}

// BuildSiteInfo flattens an aggregator's SiteInfo set fields into the
// JSON-friendly report shape.
func BuildSiteInfo(url string, cookies map[string]struct{}, title, ip string) SiteInfo {
	names := make([]string, 0, len(cookies))
	for c := range cookies {
		names = append(names, c)
	}
	return SiteInfo{URL: url, Title: title, IP: ip, Cookies: names}
}

// Since builds a Statistics block from a scan's start time, now, and
// counts.
func Since(start time.Time, urls, fingerprints int) Statistics {
	return Statistics{
		StartTime:    start.Format(time.RFC3339),
		RunTimeMS:    time.Since(start).Milliseconds(),
		URLs:         urls,
		Fingerprints: fingerprints,
	}
}
