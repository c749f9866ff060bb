package query

import (
	"fmt"
	"sort"
)

// Shape normalizes executor output into a Result. Accepted inputs are a
// Result, a list of records, a {columns, rows} map, or a {rows_affected} map.
func Shape(raw any) (Result, error) {
	switch typed := raw.(type) {
	case nil:
		return Result{Columns: []string{}, Rows: [][]any{}}, nil
	case Result:
		return normalizeResult(typed), nil
	case *Result:
		if typed == nil {
			return Result{Columns: []string{}, Rows: [][]any{}}, nil
		}
		return normalizeResult(*typed), nil
	case []map[string]any:
		return shapeRecords(typed), nil
	case []any:
		records := make([]map[string]any, 0, len(typed))
		for i, item := range typed {
			record, ok := item.(map[string]any)
			if !ok {
				return Result{}, fmt.Errorf("record %d has type %T, want object", i, item)
			}
			records = append(records, record)
		}
		return shapeRecords(records), nil
	case map[string]any:
		return shapeMap(typed)
	default:
		return Result{}, fmt.Errorf("unsupported result shape %T", raw)
	}
}

func normalizeResult(result Result) Result {
	if result.Columns == nil {
		result.Columns = []string{}
	}
	if result.Rows == nil {
		result.Rows = [][]any{}
	}
	return result
}

// shapeRecords orders columns by first appearance; keys within one record are
// sorted because map iteration order is unspecified.
func shapeRecords(records []map[string]any) Result {
	columns := []string{}
	seen := map[string]int{}
	for _, record := range records {
		keys := make([]string, 0, len(record))
		for key := range record {
			if _, ok := seen[key]; !ok {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			seen[key] = len(columns)
			columns = append(columns, key)
		}
	}

	rows := make([][]any, 0, len(records))
	for _, record := range records {
		row := make([]any, len(columns))
		for key, value := range record {
			row[seen[key]] = value
		}
		rows = append(rows, row)
	}
	return Result{Columns: columns, Rows: rows}
}

func shapeMap(raw map[string]any) (Result, error) {
	if _, ok := raw["columns"]; !ok {
		for _, key := range []string{"rows_affected", "rowcount", "affected"} {
			if value, ok := raw[key]; ok {
				count, err := toInt64(value)
				if err != nil {
					return Result{}, fmt.Errorf("%s: %w", key, err)
				}
				return Result{Columns: []string{}, Rows: [][]any{}, RowsAffected: &count}, nil
			}
		}
		return Result{}, fmt.Errorf("result map has neither columns nor rows_affected")
	}

	columns, err := toStrings(raw["columns"])
	if err != nil {
		return Result{}, fmt.Errorf("columns: %w", err)
	}
	rows, err := toRows(raw["rows"])
	if err != nil {
		return Result{}, fmt.Errorf("rows: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return Result{}, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
	}
	return Result{Columns: columns, Rows: rows}, nil
}

func toStrings(raw any) ([]string, error) {
	switch typed := raw.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string{}, typed...), nil
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("column name has type %T", item)
			}
			out = append(out, text)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}
}

func toRows(raw any) ([][]any, error) {
	switch typed := raw.(type) {
	case nil:
		return [][]any{}, nil
	case [][]any:
		return typed, nil
	case []any:
		out := make([][]any, 0, len(typed))
		for i, item := range typed {
			row, ok := item.([]any)
			if !ok {
				return nil, fmt.Errorf("row %d has type %T", i, item)
			}
			out = append(out, row)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", raw)
	}
}

func toInt64(raw any) (int64, error) {
	switch typed := raw.(type) {
	case int:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case int64:
		return typed, nil
	case float64:
		return int64(typed), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}
