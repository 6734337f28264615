package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"gsrwatch/internal/config"
	"gsrwatch/internal/gsr"
)

const latestBody = `{"ok":true,
	"latest":{"date":"2024-06-10","gsr":"80.5","gold_usd":"2300","silver_usd":"28.57","fetched_at_utc":"2024-06-10T12:00:00Z","source":"cron_hourly_yahoo"},
	"history":[
		{"date":"2024-06-08","gsr":"79.9","gold_usd":"2290","silver_usd":"28.66"},
		{"date":"2024-06-09","gsr":"80.1","gold_usd":"2295","silver_usd":"28.65"},
		{"date":"2024-06-10","gsr":"80.5","gold_usd":"2300","silver_usd":"28.57"}
	]}`

func newSourceServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(latestBody))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testApp(t *testing.T, sourceURL string) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		Source: config.SourceConfig{LatestURL: sourceURL, RequestTimeout: time.Second},
		Storage: config.StorageConfig{
			Backend: "file",
			Path:    filepath.Join(t.TempDir(), "state.json"),
		},
		View: config.ViewConfig{
			Range:     "1M",
			Metrics:   []string{"gsr", "gold", "silver"},
			MaxPoints: 3000,
			Width:     640,
			Height:    240,
			TableRows: 200,
		},
		Alerting: config.AlertingConfig{Cooldown: 24 * time.Hour},
		Export:   config.ExportConfig{MaxDataPoints: 3000},
	}
	out := &bytes.Buffer{}
	a := NewApp(cfg, zerolog.Nop())
	a.Out = out
	return a, out
}

func TestShowPrintsLatestAndNewestFirst(t *testing.T) {
	srv := newSourceServer(t)
	a, out := testApp(t, srv.URL)

	if err := a.Show(context.Background(), ShowOptions{}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	text := out.String()
	for _, want := range []string{"2024-06-10", "80.5000", "$2,300", "+0.4000", "2024-06-08 → 2024-06-10 (3 pts)"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
	table := text[strings.Index(text, "Last 3 rows"):]
	if strings.Index(table, "2024-06-10") > strings.Index(table, "2024-06-08") {
		t.Fatalf("rows should be newest first:\n%s", table)
	}
}

func TestExportWritesAllFormats(t *testing.T) {
	srv := newSourceServer(t)
	a, _ := testApp(t, srv.URL)
	dir := t.TempDir()
	opts := ExportOptions{
		CSVPath:  filepath.Join(dir, "out", "gsr.csv"),
		PNGPath:  filepath.Join(dir, "gsr.png"),
		XLSXPath: filepath.Join(dir, "gsr.xlsx"),
		PDFPath:  filepath.Join(dir, "gsr.pdf"),
	}
	if err := a.Export(context.Background(), opts); err != nil {
		t.Fatalf("Export: %v", err)
	}

	file, err := os.Open(opts.CSVPath)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 || records[3][0] != "2024-06-10" || records[3][1] != "80.5" {
		t.Fatalf("unexpected csv %v", records)
	}

	xl, err := excelize.OpenFile(opts.XLSXPath)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer xl.Close()
	if v, _ := xl.GetCellValue("History", "A4"); v != "2024-06-10" {
		t.Fatalf("History!A4 = %q", v)
	}

	for _, p := range []string{opts.PNGPath, opts.PDFPath} {
		info, err := os.Stat(p)
		if err != nil || info.Size() == 0 {
			t.Fatalf("%s not written: %v", p, err)
		}
	}
}

func TestExportRequiresOutput(t *testing.T) {
	a, _ := testApp(t, "http://127.0.0.1:1")
	if err := a.Export(context.Background(), ExportOptions{}); err == nil {
		t.Fatal("expected error without outputs")
	}
}

func TestAlertsSetShowClear(t *testing.T) {
	a, out := testApp(t, "")
	ctx := context.Background()
	threshold := 81.0
	enabled := true

	if err := a.AlertsSet(ctx, AlertSetOptions{Metric: "gsr", Direction: "below", Threshold: &threshold, Enabled: &enabled}); err != nil {
		t.Fatalf("AlertsSet: %v", err)
	}
	if err := a.AlertsShow(ctx); err != nil {
		t.Fatalf("AlertsShow: %v", err)
	}
	if !strings.Contains(out.String(), "Enabled  true") || !strings.Contains(out.String(), "81") {
		t.Fatalf("unexpected show output:\n%s", out.String())
	}

	if err := a.AlertsClear(ctx, ""); err != nil {
		t.Fatalf("AlertsClear: %v", err)
	}
	out.Reset()
	if err := a.AlertsShow(ctx); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "81") {
		t.Fatalf("threshold should be cleared:\n%s", out.String())
	}

	if err := a.AlertsSet(ctx, AlertSetOptions{Metric: "gsr", Direction: "sideways", Threshold: &threshold}); err == nil {
		t.Fatal("bad direction should fail")
	}
}

func TestAlertsTest(t *testing.T) {
	a, out := testApp(t, "")
	if err := a.AlertsTest(context.Background()); err != nil {
		t.Fatalf("AlertsTest: %v", err)
	}
	if !strings.Contains(out.String(), "sent:") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestInspect(t *testing.T) {
	srv := newSourceServer(t)
	a, out := testApp(t, srv.URL)
	if err := a.Inspect(context.Background(), InspectOptions{Range: "max"}); err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	for _, want := range []string{"siblings", "80,000", "History rows", "elite"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("inspect output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRecentRows(t *testing.T) {
	window := []gsr.Observation{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
	}
	rows := recentRows(window, 2)
	if len(rows) != 2 || rows[0].DateString() != "2024-01-03" || rows[1].DateString() != "2024-01-02" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestRefreshJobFollowsSchedulerConfig(t *testing.T) {
	a, _ := testApp(t, "http://127.0.0.1:1")
	a.Config.Scheduler = config.SchedulerConfig{RefreshInterval: 15 * time.Minute, Align: true}

	job := a.refreshJob(nil)
	if job.Name != "refresh" || job.Interval != 15*time.Minute || !job.Immediate {
		t.Fatalf("unexpected job %+v", job)
	}
	if !job.AlignToStart {
		t.Fatal("scheduler.align should align the refresh job")
	}

	a.Config.Scheduler.Align = false
	if a.refreshJob(nil).AlignToStart {
		t.Fatal("refresh job aligned without scheduler.align")
	}
}
