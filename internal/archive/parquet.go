package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/parquet-go/parquet-go"
)

// headerRow marks cells that only declare a column, so that results with no
// rows keep their column list.
const headerRow = -1

type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type parquetCell struct {
	RowIndex    int64  `parquet:"row_index"`
	ColumnIndex int32  `parquet:"column_index"`
	ColumnName  string `parquet:"column_name"`
	ValueJSON   string `parquet:"value_json"`
}

// Encode writes a result set as long-format Parquet: one record per cell with
// the value stored as JSON.
func Encode(columns []string, rows [][]any) ([]byte, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("columns are required")
	}

	cells := make([]parquetCell, 0, len(columns)*(len(rows)+1))
	for columnIndex, column := range columns {
		cells = append(cells, parquetCell{RowIndex: headerRow, ColumnIndex: int32(columnIndex), ColumnName: column})
	}
	for rowIndex, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", rowIndex, len(row), len(columns))
		}
		for columnIndex, value := range row {
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("encode row %d column %q: %w", rowIndex, columns[columnIndex], err)
			}
			cells = append(cells, parquetCell{
				RowIndex:    int64(rowIndex),
				ColumnIndex: int32(columnIndex),
				ColumnName:  columns[columnIndex],
				ValueJSON:   string(encoded),
			})
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetCell](buf)
	if _, err := writer.Write(cells); err != nil {
		return nil, fmt.Errorf("write parquet cells: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode rebuilds a Table from Encode output. Numbers come back as
// json.Number.
func Decode(data []byte) (Table, error) {
	reader := parquet.NewGenericReader[parquetCell](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	cells := make([]parquetCell, 0, reader.NumRows())
	batch := make([]parquetCell, 256)
	for {
		n, err := reader.Read(batch)
		cells = append(cells, batch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read parquet cells: %w", err)
		}
		if n == 0 {
			break
		}
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].RowIndex != cells[j].RowIndex {
			return cells[i].RowIndex < cells[j].RowIndex
		}
		return cells[i].ColumnIndex < cells[j].ColumnIndex
	})

	table := Table{Columns: []string{}, Rows: [][]any{}}
	for _, cell := range cells {
		if cell.RowIndex == headerRow {
			if int(cell.ColumnIndex) != len(table.Columns) {
				return Table{}, fmt.Errorf("column %d is out of order", cell.ColumnIndex)
			}
			table.Columns = append(table.Columns, cell.ColumnName)
			continue
		}
		if cell.RowIndex != int64(len(table.Rows)) && cell.RowIndex != int64(len(table.Rows))-1 {
			return Table{}, fmt.Errorf("row %d is out of order", cell.RowIndex)
		}
		if cell.RowIndex == int64(len(table.Rows)) {
			table.Rows = append(table.Rows, make([]any, len(table.Columns)))
		}
		if int(cell.ColumnIndex) >= len(table.Columns) {
			return Table{}, fmt.Errorf("row %d references unknown column %d", cell.RowIndex, cell.ColumnIndex)
		}
		value, err := decodeValue(cell.ValueJSON)
		if err != nil {
			return Table{}, fmt.Errorf("decode row %d column %q: %w", cell.RowIndex, cell.ColumnName, err)
		}
		table.Rows[cell.RowIndex][cell.ColumnIndex] = value
	}
	return table, nil
}

func decodeValue(raw string) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}
