package cli

import (
	"github.com/spf13/cobra"

	"gsrwatch/internal/app"
)

var (
	exportRange     string
	exportPNGPath   string
	exportCSVPath   string
	exportXLSXPath  string
	exportPDFPath   string
	exportMaxPoints int
	exportForce     bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a range of observations as CSV, PNG, XLSX and/or PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Range:     exportRange,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			XLSXPath:  exportXLSXPath,
			PDFPath:   exportPDFPath,
			MaxPoints: exportMaxPoints,
			Force:     exportForce,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRange, "range", "", "Range to export: 1M, 3M, 6M, 1Y or MAX")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportXLSXPath, "xlsx", "", "Path to write an Excel workbook")
	exportCmd.Flags().StringVar(&exportPDFPath, "pdf", "", "Path to write a PDF report")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "Ask the source to bypass its cache")
}
