package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gsrwatch/internal/gsr"
)

// Shape identifies which historical response layout a payload used.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeSiblings is {ok, latest:{...}, history:[...]}.
	ShapeSiblings
	// ShapeNested is {ok, latest:{..., history:[...]}}.
	ShapeNested
	// ShapeFlat is a single observation at the top level without history.
	ShapeFlat
)

func (s Shape) String() string {
	switch s {
	case ShapeSiblings:
		return "siblings"
	case ShapeNested:
		return "nested"
	case ShapeFlat:
		return "flat"
	default:
		return "unknown"
	}
}

// Payload is the canonical form of a data source response.
type Payload struct {
	OK      bool
	Latest  *gsr.Observation
	History []gsr.Observation
	Error   string
	Shape   Shape
	Dropped int
}

// Normalize decodes any supported response layout and never fails:
// malformed input yields a not-ok payload carrying the decode error.
func Normalize(raw []byte) Payload {
	p, err := Decode(raw)
	if err != nil {
		return Payload{History: []gsr.Observation{}, Error: err.Error()}
	}
	return p
}

// Decode is Normalize but reports undecodable JSON as an error, letting
// callers tell transport garbage apart from a semantic ok=false.
func Decode(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}

	shape := env.shape()
	p := Payload{
		OK:      env.OK.bool(),
		Error:   env.Error.text(),
		Shape:   shape,
		History: []gsr.Observation{},
	}

	var latest *rawObservation
	var history json.RawMessage
	switch shape {
	case ShapeSiblings:
		latest = env.latestObject()
		history = env.History
	case ShapeNested:
		latest = env.latestObject()
		history = latest.History
	case ShapeFlat:
		latest = &env.rawObservation
	}

	if latest != nil {
		if obs, ok := latest.observation(); ok {
			p.Latest = &obs
		}
	}
	p.History, p.Dropped = decodeHistory(history)
	return p, nil
}

type envelope struct {
	OK     flexBool        `json:"ok"`
	Error  flexText        `json:"error"`
	Latest json.RawMessage `json:"latest"`
	rawObservation
}

// shape dispatches on which fields are present. A top-level history wins
// over one nested under latest.
func (e *envelope) shape() Shape {
	if isArray(e.History) {
		return ShapeSiblings
	}
	if latest := e.latestObject(); latest != nil {
		if isArray(latest.History) {
			return ShapeNested
		}
		return ShapeSiblings
	}
	if e.rawObservation.hasFields() {
		return ShapeFlat
	}
	return ShapeUnknown
}

func (e *envelope) latestObject() *rawObservation {
	if !isObject(e.Latest) {
		return nil
	}
	var obs rawObservation
	if err := json.Unmarshal(e.Latest, &obs); err != nil {
		return nil
	}
	return &obs
}

type rawObservation struct {
	Date         flexText        `json:"date"`
	DateUTC      flexText        `json:"date_utc"`
	GSR          flexNumber      `json:"gsr"`
	GoldUSD      flexNumber      `json:"gold_usd"`
	SilverUSD    flexNumber      `json:"silver_usd"`
	FetchedAtUTC flexText        `json:"fetched_at_utc"`
	FetchedAt    flexText        `json:"fetched_at"`
	Source       flexText        `json:"source"`
	History      json.RawMessage `json:"history"`
}

func (r *rawObservation) hasFields() bool {
	return r.Date.set || r.DateUTC.set || r.GSR.set || r.GoldUSD.set || r.SilverUSD.set
}

func (r *rawObservation) observation() (gsr.Observation, bool) {
	if !r.hasFields() {
		return gsr.Observation{}, false
	}
	obs := gsr.Observation{
		GSR:       r.GSR.value(),
		GoldUSD:   r.GoldUSD.value(),
		SilverUSD: r.SilverUSD.value(),
		Source:    r.Source.text(),
	}
	if date, err := gsr.ParseDate(firstNonEmpty(r.Date.text(), r.DateUTC.text())); err == nil {
		obs.Date = date
	}
	if ts, ok := parseTimestamp(firstNonEmpty(r.FetchedAtUTC.text(), r.FetchedAt.text())); ok {
		obs.FetchedAt = ts
	}
	return obs, true
}

// decodeHistory keeps rows that carry a parseable date and sorts them
// ascending. The number of discarded rows is returned for logging.
func decodeHistory(raw json.RawMessage) ([]gsr.Observation, int) {
	if !isArray(raw) {
		return []gsr.Observation{}, 0
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return []gsr.Observation{}, 0
	}

	out := make([]gsr.Observation, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		var r rawObservation
		if err := json.Unmarshal(row, &r); err != nil {
			dropped++
			continue
		}
		obs, ok := r.observation()
		if !ok || obs.Date.IsZero() {
			dropped++
			continue
		}
		out = append(out, obs)
	}

	slices.SortStableFunc(out, func(a, b gsr.Observation) int {
		return a.Date.Compare(b.Date)
	})
	return out, dropped
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// flexNumber accepts a JSON number or a numeric string; anything else is NaN.
type flexNumber struct {
	set bool
	f   float64
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	n.set = true
	n.f = math.NaN()

	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil
	}

	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	default:
		return nil
	}
	if d, err := decimal.NewFromString(s); err == nil {
		n.f = d.InexactFloat64()
	}
	return nil
}

func (n flexNumber) value() float64 {
	if !n.set {
		return math.NaN()
	}
	return n.f
}

// flexText keeps strings verbatim and any other JSON value as compact text.
type flexText struct {
	set bool
	s   string
}

func (t *flexText) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	t.set = true
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		t.s = s
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		t.s = string(trimmed)
		return nil
	}
	t.s = buf.String()
	return nil
}

func (t flexText) text() string {
	return t.s
}

type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexBool(v)
	}
	return nil
}

func (f flexBool) bool() bool {
	return bool(f)
}
