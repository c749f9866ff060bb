package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Shivansh-2508/AI-DB/internal/schema"
)

// Introspector describes a namespace through information_schema. DuckDB exposes the same views,
// so it serves both drivers.
type Introspector struct {
	db *sql.DB
}

func NewIntrospector(db *sql.DB) *Introspector {
	return &Introspector{db: db}
}

const columnsQuery = `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

const primaryKeysQuery = `
SELECT kcu.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_schema = tc.constraint_schema
 AND kcu.constraint_name = tc.constraint_name
 AND kcu.table_name = tc.table_name
WHERE tc.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.table_name, kcu.ordinal_position`

const foreignKeysQuery = `
SELECT kcu.table_name, kcu.column_name, ref.table_name, ref.column_name
FROM information_schema.referential_constraints rc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_schema = rc.constraint_schema
 AND kcu.constraint_name = rc.constraint_name
JOIN information_schema.key_column_usage ref
  ON ref.constraint_schema = rc.unique_constraint_schema
 AND ref.constraint_name = rc.unique_constraint_name
 AND ref.ordinal_position = kcu.position_in_unique_constraint
WHERE kcu.table_schema = $1
ORDER BY kcu.table_name, kcu.ordinal_position`

func (i *Introspector) DescribeSchema(ctx context.Context, namespace string) (schema.Description, error) {
	description := schema.Description{}

	if err := i.loadColumns(ctx, namespace, description); err != nil {
		return nil, err
	}
	if err := i.loadPrimaryKeys(ctx, namespace, description); err != nil {
		return nil, err
	}
	if err := i.loadForeignKeys(ctx, namespace, description); err != nil {
		return nil, err
	}
	return description, nil
}

func (i *Introspector) loadColumns(ctx context.Context, namespace string, description schema.Description) error {
	rows, err := i.db.QueryContext(ctx, columnsQuery, namespace)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tableName string
		var column schema.Column
		if err := rows.Scan(&tableName, &column.Name, &column.Type); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		table := description[tableName]
		table.Columns = append(table.Columns, column)
		description[tableName] = table
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}
	return nil
}

func (i *Introspector) loadPrimaryKeys(ctx context.Context, namespace string, description schema.Description) error {
	rows, err := i.db.QueryContext(ctx, primaryKeysQuery, namespace)
	if err != nil {
		return fmt.Errorf("query primary keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return fmt.Errorf("scan primary key: %w", err)
		}
		table, ok := description[tableName]
		if !ok {
			continue
		}
		table.PrimaryKey = append(table.PrimaryKey, columnName)
		description[tableName] = table
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate primary keys: %w", err)
	}
	return nil
}

func (i *Introspector) loadForeignKeys(ctx context.Context, namespace string, description schema.Description) error {
	rows, err := i.db.QueryContext(ctx, foreignKeysQuery, namespace)
	if err != nil {
		return fmt.Errorf("query foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tableName string
		var fk schema.ForeignKey
		if err := rows.Scan(&tableName, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return fmt.Errorf("scan foreign key: %w", err)
		}
		table, ok := description[tableName]
		if !ok {
			continue
		}
		table.ForeignKeys = append(table.ForeignKeys, fk)
		description[tableName] = table
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate foreign keys: %w", err)
	}
	return nil
}
