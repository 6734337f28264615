package gsr

import (
	"math"
	"testing"
	"time"
)

func TestBuildSeriesDropsMalformedRows(t *testing.T) {
	points := []Observation{
		{Date: day("2024-06-01"), GSR: 80, GoldUSD: 2300},
		{Date: time.Time{}, GSR: 81},
		{Date: day("2024-06-03"), GSR: math.NaN(), GoldUSD: 2310},
		{Date: day("2024-06-04"), GSR: math.Inf(1), GoldUSD: math.NaN()},
		{Date: day("2024-06-05"), GSR: 82, GoldUSD: math.Inf(-1)},
	}

	got := BuildSeries(points, MetricGSR)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Y != 80 || got[1].Y != 82 || !got[1].X.Equal(day("2024-06-05")) {
		t.Fatalf("unexpected series %+v", got)
	}

	gold := BuildSeries(points, MetricGold)
	if len(gold) != 2 || gold[1].Y != 2310 {
		t.Fatalf("gold series %+v", gold)
	}
}
