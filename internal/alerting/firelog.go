package alerting

import (
	"strconv"
	"time"

	"gsrwatch/internal/gsr"
)

// FireLog maps a rule key to the instant it last fired.
type FireLog map[string]time.Time

// RuleKey builds the dedup identity of one threshold.
func RuleKey(metric gsr.Metric, dir Direction, threshold float64) string {
	return string(metric) + "|" + string(dir) + "|" + strconv.FormatFloat(threshold, 'f', -1, 64)
}

// Eligible reports whether key may fire at now given the cooldown window.
// Elapsed wall-clock time is compared, not calendar days.
func (l FireLog) Eligible(key string, now time.Time, window time.Duration) bool {
	last, ok := l[key]
	if !ok {
		return true
	}
	return now.Sub(last) >= window
}

func (l FireLog) clone() FireLog {
	out := make(FireLog, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}
