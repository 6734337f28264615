package app

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"gsrwatch/internal/chartsync"
	"gsrwatch/internal/gsr"
)

func formatValue(m gsr.Metric, v float64) string {
	if !gsr.IsFinite(v) {
		return "—"
	}
	if m == gsr.MetricGSR {
		return decimal.NewFromFloat(v).StringFixed(4)
	}
	return chartsync.FormatFor(m)(v)
}

func formatDelta(d gsr.Delta) string {
	var b strings.Builder
	switch d.Direction {
	case gsr.DirectionUp:
		b.WriteString("▲ +")
	case gsr.DirectionDown:
		b.WriteString("▼ ")
	default:
		b.WriteString("• ")
	}
	b.WriteString(d.Absolute.StringFixed(4))
	if d.Percent.Valid {
		b.WriteString(" (")
		if d.Percent.Decimal.Sign() > 0 {
			b.WriteString("+")
		}
		b.WriteString(d.Percent.Decimal.StringFixed(2))
		b.WriteString("%)")
	}
	return b.String()
}

// decimalText renders v exactly, or empty for NaN.
func decimalText(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).String()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
