package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestDescribeSchemaAssemblesTables(t *testing.T) {
	db, mock := newSQLMock(t)
	introspector := NewIntrospector(db)

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("orders", "id", "integer").
			AddRow("orders", "user_id", "integer").
			AddRow("orders", "total", "numeric").
			AddRow("users", "id", "integer").
			AddRow("users", "email", "text"))
	mock.ExpectQuery(regexp.QuoteMeta(primaryKeysQuery)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("orders", "id").
			AddRow("users", "id"))
	mock.ExpectQuery(regexp.QuoteMeta(foreignKeysQuery)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "table_name", "column_name"}).
			AddRow("orders", "user_id", "users", "id"))

	description, err := introspector.DescribeSchema(context.Background(), "public")
	if err != nil {
		t.Fatalf("DescribeSchema() error = %v", err)
	}
	if len(description) != 2 {
		t.Fatalf("tables = %d", len(description))
	}
	orders := description["orders"]
	if len(orders.Columns) != 3 || orders.Columns[2].Name != "total" || orders.Columns[2].Type != "numeric" {
		t.Fatalf("orders columns = %#v", orders.Columns)
	}
	if len(orders.PrimaryKey) != 1 || orders.PrimaryKey[0] != "id" {
		t.Fatalf("orders primary key = %#v", orders.PrimaryKey)
	}
	if len(orders.ForeignKeys) != 1 || orders.ForeignKeys[0].RefTable != "users" || orders.ForeignKeys[0].RefColumn != "id" {
		t.Fatalf("orders foreign keys = %#v", orders.ForeignKeys)
	}
	if len(description["users"].ForeignKeys) != 0 {
		t.Fatalf("users foreign keys = %#v", description["users"].ForeignKeys)
	}
	assertSQLMock(t, mock)
}

func TestDescribeSchemaPropagatesConnectionError(t *testing.T) {
	db, mock := newSQLMock(t)
	introspector := NewIntrospector(db)

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("public").
		WillReturnError(sql.ErrConnDone)

	_, err := introspector.DescribeSchema(context.Background(), "public")
	if !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("DescribeSchema() error = %v, want ErrConnDone", err)
	}
	assertSQLMock(t, mock)
}

func TestDescribeSchemaEmptyNamespace(t *testing.T) {
	db, mock := newSQLMock(t)
	introspector := NewIntrospector(db)

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("empty").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}))
	mock.ExpectQuery(regexp.QuoteMeta(primaryKeysQuery)).
		WithArgs("empty").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}))
	mock.ExpectQuery(regexp.QuoteMeta(foreignKeysQuery)).
		WithArgs("empty").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "ref_table", "ref_column"}))

	description, err := introspector.DescribeSchema(context.Background(), "empty")
	if err != nil {
		t.Fatalf("DescribeSchema() error = %v", err)
	}
	if len(description) != 0 {
		t.Fatalf("tables = %d", len(description))
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
