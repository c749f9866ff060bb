package query

import (
	"errors"
	"testing"
)

func TestShapeColumnsRowsMap(t *testing.T) {
	result, err := Shape(map[string]any{
		"columns": []any{"month", "count"},
		"rows":    []any{[]any{"Jan", 5}, []any{"Feb", 7}},
	})
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if len(result.Columns) != 2 || result.Columns[1] != "count" {
		t.Fatalf("Columns = %#v", result.Columns)
	}
	if len(result.Rows) != 2 || result.Rows[1][1] != 7 {
		t.Fatalf("Rows = %#v", result.Rows)
	}
}

func TestShapeRecordsKeepsFirstSeenColumnOrder(t *testing.T) {
	result, err := Shape([]map[string]any{
		{"name": "a", "id": 1},
		{"id": 2, "name": "b", "extra": true},
	})
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	want := []string{"id", "name", "extra"}
	if len(result.Columns) != len(want) {
		t.Fatalf("Columns = %#v, want %#v", result.Columns, want)
	}
	for i := range want {
		if result.Columns[i] != want[i] {
			t.Fatalf("Columns = %#v, want %#v", result.Columns, want)
		}
	}
	if result.Rows[0][2] != nil || result.Rows[1][2] != true {
		t.Fatalf("Rows = %#v", result.Rows)
	}
}

func TestShapeRowsAffected(t *testing.T) {
	result, err := Shape(map[string]any{"rows_affected": 3})
	if err != nil {
		t.Fatalf("Shape() error = %v", err)
	}
	if result.RowsAffected == nil || *result.RowsAffected != 3 {
		t.Fatalf("RowsAffected = %v", result.RowsAffected)
	}
	if result.HasRows() {
		t.Fatal("HasRows() = true for affected-row result")
	}
}

func TestShapeNilAndResultPassThrough(t *testing.T) {
	result, err := Shape(nil)
	if err != nil {
		t.Fatalf("Shape(nil) error = %v", err)
	}
	if result.Columns == nil || result.Rows == nil {
		t.Fatalf("Shape(nil) = %#v, want empty non-nil slices", result)
	}

	in := Result{Columns: []string{"a"}, Rows: [][]any{{1}}, Truncated: true}
	out, err := Shape(&in)
	if err != nil {
		t.Fatalf("Shape(*Result) error = %v", err)
	}
	if !out.Truncated || out.Rows[0][0] != 1 {
		t.Fatalf("Shape(*Result) = %#v", out)
	}
}

func TestShapeRejectsMalformedInput(t *testing.T) {
	inputs := []any{
		42,
		map[string]any{"unknown": 1},
		map[string]any{"columns": []any{"a", "b"}, "rows": []any{[]any{1}}},
		[]any{"not a record"},
	}
	for _, input := range inputs {
		if _, err := Shape(input); err == nil {
			t.Fatalf("Shape(%#v) expected error", input)
		}
	}
}

func TestExecErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := error(&ExecError{Kind: FailureConnection, Message: "connection refused", Err: cause})
	if err.Error() != "connection refused" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is(ExecError, cause) = false")
	}
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.Kind != FailureConnection {
		t.Fatalf("errors.As() kind = %v", execErr)
	}
}
