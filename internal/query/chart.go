package query

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

type ChartKind string

const (
	ChartBar     ChartKind = "bar"
	ChartLine    ChartKind = "line"
	ChartPie     ChartKind = "pie"
	ChartScatter ChartKind = "scatter"
)

const chartSampleRows = 10

// Chart is a visualization hint for the first two columns of a result. It is
// a heuristic; renderers validate the data themselves.
type Chart struct {
	Chartable bool      `json:"chartable"`
	Kind      ChartKind `json:"kind,omitempty"`
	X         string    `json:"x,omitempty"`
	Y         string    `json:"y,omitempty"`
}

func ParseChartKind(raw string) (ChartKind, bool) {
	switch kind := ChartKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case ChartBar, ChartLine, ChartPie, ChartScatter:
		return kind, true
	default:
		return "", false
	}
}

// DetectChart marks a result chartable when it has at least two columns, at
// least one row, and the second column holds only numbers, numeric text or
// nulls across the first ten rows.
func DetectChart(columns []string, rows [][]any) Chart {
	if len(columns) < 2 || len(rows) == 0 {
		return Chart{}
	}
	limit := len(rows)
	if limit > chartSampleRows {
		limit = chartSampleRows
	}
	for _, row := range rows[:limit] {
		if len(row) < 2 || !isNumeric(row[1]) {
			return Chart{}
		}
	}
	return Chart{Chartable: true, Kind: ChartBar, X: columns[0], Y: columns[1]}
}

// WithKind overrides the chart kind. Unknown kinds and non-chartable results
// are returned unchanged.
func (c Chart) WithKind(raw string) Chart {
	if !c.Chartable {
		return c
	}
	if kind, ok := ParseChartKind(raw); ok {
		c.Kind = kind
	}
	return c
}

func isNumeric(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return isFinite(float64(typed))
	case float64:
		return isFinite(typed)
	case json.Number:
		return isNumericText(typed.String())
	case string:
		return isNumericText(typed)
	case []byte:
		return isNumericText(string(typed))
	default:
		return false
	}
}

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// isNumericText accepts plain decimal notation only. ParseFloat alone would also
// take NaN, Inf and hex floats.
func isNumericText(text string) bool {
	text = strings.TrimSpace(text)
	if !decimalPattern.MatchString(text) {
		return false
	}
	value, err := strconv.ParseFloat(text, 64)
	return err == nil && isFinite(value)
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
