package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/xuri/excelize/v2"

	"gsrwatch/internal/gsr"
	"gsrwatch/internal/service"
)

// pdfTableRows bounds the history table embedded in a PDF report.
const pdfTableRows = 60

// Export fetches the selected range and writes it as CSV, PNG, XLSX and/or PDF.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.XLSXPath == "" && opts.PDFPath == "" {
		return errors.New("at least one of --csv, --png, --xlsx or --pdf must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	svc, err := a.newSession(opts.Range, nil, nil)
	if err != nil {
		return err
	}
	res, err := svc.Load(ctx, service.LoadOptions{Force: opts.Force})
	if err != nil {
		return err
	}
	if len(res.Window) == 0 {
		a.Logger.Info().Msg("no observations found for export window")
		return nil
	}

	rows := gsr.Downsample(res.Window, opts.MaxPoints)
	a.Logger.Info().Int("total", len(res.Window)).Int("exported", len(rows)).Str("range", string(res.Range)).Msg("exporting observations")

	if opts.CSVPath != "" {
		if err := writeObservationsCSV(opts.CSVPath, rows); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeObservationsPNG(opts.PNGPath, rows, res.Range, a.Config.View.Width, a.Config.View.Height*2); err != nil {
			return err
		}
	}
	if opts.XLSXPath != "" {
		if err := writeObservationsXLSX(opts.XLSXPath, rows, res); err != nil {
			return err
		}
	}
	if opts.PDFPath != "" {
		if err := writeObservationsPDF(opts.PDFPath, rows, res); err != nil {
			return err
		}
	}
	return nil
}

var exportHeader = []string{"date", "gsr", "gold_usd", "silver_usd", "fetched_at_utc", "source"}

func exportRecord(obs gsr.Observation) []string {
	fetched := ""
	if !obs.FetchedAt.IsZero() {
		fetched = obs.FetchedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		obs.DateString(),
		decimalText(obs.GSR),
		decimalText(obs.GoldUSD),
		decimalText(obs.SilverUSD),
		fetched,
		obs.Source,
	}
}

func writeObservationsCSV(path string, rows []gsr.Observation) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, obs := range rows {
		if err := writer.Write(exportRecord(obs)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func observationsGraph(rows []gsr.Observation, rng gsr.Range, width, height int) *chart.Chart {
	x := make([]time.Time, 0, len(rows))
	ratio := make([]float64, 0, len(rows))
	gold := make([]float64, 0, len(rows))
	for _, obs := range rows {
		if !gsr.IsFinite(obs.GSR) || !gsr.IsFinite(obs.GoldUSD) {
			continue
		}
		x = append(x, obs.Date)
		ratio = append(ratio, obs.GSR)
		gold = append(gold, obs.GoldUSD)
	}

	layout := rng.TimeUnit().Layout()
	graph := &chart.Chart{
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return time.Unix(0, int64(f)).UTC().Format(layout)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name: "GSR",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		YAxisSecondary: chart.YAxis{
			Name: "Gold (USD)",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "GSR",
				XValues: x,
				YValues: ratio,
			},
			chart.TimeSeries{
				Name:    "Gold",
				XValues: x,
				YValues: gold,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(graph)}
	return graph
}

func writeObservationsPNG(path string, rows []gsr.Observation, rng gsr.Range, width, height int) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := observationsGraph(rows, rng, width, height).Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func writeObservationsXLSX(path string, rows []gsr.Observation, res service.LoadResult) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	const summarySheet = "Summary"
	const historySheet = "History"

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(historySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	_ = f.SetCellValue(summarySheet, "A1", "Gold/Silver Ratio export")
	_ = f.SetCellValue(summarySheet, "A3", "Range")
	_ = f.SetCellValue(summarySheet, "B3", string(res.Range))
	_ = f.SetCellValue(summarySheet, "A4", "Window")
	_ = f.SetCellValue(summarySheet, "B4", res.Label)
	_ = f.SetCellValue(summarySheet, "A5", "Rows")
	_ = f.SetCellValue(summarySheet, "B5", len(rows))
	row := 7
	if res.Latest != nil {
		_ = f.SetCellValue(summarySheet, "A6", "Latest")
		_ = f.SetCellValue(summarySheet, "B6", res.Latest.DateString())
		for _, m := range gsr.Metrics {
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), m.Label())
			if v := res.Latest.Value(m); gsr.IsFinite(v) {
				_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), v)
			}
			if d, ok := res.Deltas[m]; ok {
				_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), formatDelta(d))
			}
			row++
		}
	}

	for i, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(historySheet, cell, h)
	}
	for i, obs := range rows {
		r := i + 2
		_ = f.SetCellValue(historySheet, fmt.Sprintf("A%d", r), obs.DateString())
		setFloatCell(f, historySheet, fmt.Sprintf("B%d", r), obs.GSR)
		setFloatCell(f, historySheet, fmt.Sprintf("C%d", r), obs.GoldUSD)
		setFloatCell(f, historySheet, fmt.Sprintf("D%d", r), obs.SilverUSD)
		if !obs.FetchedAt.IsZero() {
			_ = f.SetCellValue(historySheet, fmt.Sprintf("E%d", r), obs.FetchedAt.UTC().Format(time.RFC3339))
		}
		_ = f.SetCellValue(historySheet, fmt.Sprintf("F%d", r), obs.Source)
	}
	_ = f.SetColWidth(historySheet, "A", "A", 12)
	_ = f.SetColWidth(historySheet, "E", "E", 22)

	return f.SaveAs(path)
}

func setFloatCell(f *excelize.File, sheet, cell string, v float64) {
	if !gsr.IsFinite(v) {
		return
	}
	_ = f.SetCellValue(sheet, cell, v)
}

func writeObservationsPDF(path string, rows []gsr.Observation, res service.LoadResult) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Gold/Silver Ratio Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Range: %s  %s", res.Range, asciiArrow(res.Label)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	if res.Latest != nil {
		for _, m := range gsr.Metrics {
			line := fmt.Sprintf("%s: %s", m.Label(), decimalText(res.Latest.Value(m)))
			if d, ok := res.Deltas[m]; ok {
				line += fmt.Sprintf("  (change %s)", d.Absolute.StringFixed(4))
			}
			pdf.Cell(0, 6, line)
			pdf.Ln(5)
		}
	}
	pdf.Ln(4)

	if len(rows) >= 2 {
		var img bytes.Buffer
		if err := observationsGraph(rows, res.Range, 1200, 600).Render(chart.PNG, &img); err == nil {
			opts := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader("history", opts, &img)
			pdf.ImageOptions("history", 10, pdf.GetY(), 190, 95, false, opts, 0, "")
			pdf.Ln(100)
		}
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "GSR", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Gold (USD)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Silver (USD)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, obs := range recentRows(rows, pdfTableRows) {
		pdf.CellFormat(40, 6, obs.DateString(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, fixed(obs.GSR, 4), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, fixed(obs.GoldUSD, 2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, fixed(obs.SilverUSD, 3), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	return pdf.OutputFileAndClose(path)
}

func fixed(v float64, places int32) string {
	if !gsr.IsFinite(v) {
		return "-"
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// asciiArrow keeps PDF core fonts happy.
func asciiArrow(s string) string {
	out := []rune{}
	for _, r := range s {
		switch r {
		case '→':
			out = append(out, '-', '>')
		case '—':
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
