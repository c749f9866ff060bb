package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Shivansh-2508/AI-DB/internal/observability"
	"github.com/Shivansh-2508/AI-DB/internal/query"
)

var returningPattern = regexp.MustCompile(`(?i)\breturning\b`)

// Executor runs statements against a database/sql pool opened by db.Open.
type Executor struct {
	db      *sql.DB
	maxRows int
}

func NewExecutor(db *sql.DB, maxRows int) *Executor {
	return &Executor{db: db, maxRows: maxRows}
}

func (e *Executor) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if e == nil || e.db == nil {
		return query.Result{}, &query.ExecError{Kind: query.FailureConnection, Message: "database is not configured"}
	}
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, &query.ExecError{Kind: query.FailureSyntax, Message: "sql is required"}
	}

	mode := "read"
	if request.Write {
		mode = "write"
	}
	start := time.Now()
	defer func() { observability.ObserveExecution(mode, time.Since(start)) }()

	if request.Write && !returningPattern.MatchString(sqlText) {
		res, err := e.db.ExecContext(ctx, sqlText, request.Params...)
		if err != nil {
			return query.Result{}, classify(err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return query.Result{}, classify(fmt.Errorf("rows affected: %w", err))
		}
		return query.Result{
			Columns:      []string{},
			Rows:         [][]any{},
			RowsAffected: &affected,
			Duration:     time.Since(start),
		}, nil
	}

	rows, err := e.db.QueryContext(ctx, sqlText, request.Params...)
	if err != nil {
		return query.Result{}, classify(err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, classify(fmt.Errorf("query columns: %w", err))
	}

	resultRows := make([][]any, 0)
	truncated := false
	for rows.Next() {
		if e.maxRows > 0 && len(resultRows) == e.maxRows {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, classify(fmt.Errorf("scan row: %w", err))
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, classify(err)
	}

	result := query.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}
	if request.Write {
		affected := int64(len(resultRows))
		result.RowsAffected = &affected
	}
	return result, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.UTC().Format(time.RFC3339Nano)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// classify maps driver failures onto query.FailureKind, keeping the driver's
// message. PostgreSQL errors are classified by SQLSTATE class and DuckDB
// errors by their message prefix.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var execErr *query.ExecError
	if errors.As(err, &execErr) {
		return execErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &query.ExecError{Kind: kindForSQLState(pgErr.Code), Message: pgErr.Message, Err: err}
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr),
		errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return &query.ExecError{Kind: query.FailureConnection, Message: err.Error(), Err: err}
	}

	return &query.ExecError{Kind: kindForMessage(err.Error()), Message: err.Error(), Err: err}
}

func kindForSQLState(code string) query.FailureKind {
	switch {
	case strings.HasPrefix(code, "23"):
		return query.FailureConstraint
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "57P"), strings.HasPrefix(code, "53"):
		return query.FailureConnection
	default:
		return query.FailureSyntax
	}
}

var duckDBPrefixes = []struct {
	prefix string
	kind   query.FailureKind
}{
	{prefix: "constraint error", kind: query.FailureConstraint},
	{prefix: "connection error", kind: query.FailureConnection},
	{prefix: "io error", kind: query.FailureConnection},
	{prefix: "interrupt error", kind: query.FailureConnection},
}

func kindForMessage(message string) query.FailureKind {
	lowered := strings.ToLower(strings.TrimSpace(message))
	for _, candidate := range duckDBPrefixes {
		if strings.HasPrefix(lowered, candidate.prefix) {
			return candidate.kind
		}
	}
	if strings.Contains(lowered, "violates") && strings.Contains(lowered, "constraint") {
		return query.FailureConstraint
	}
	return query.FailureSyntax
}
