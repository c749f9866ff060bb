package query

import (
	"context"
	"time"
)

type Request struct {
	SQL    string
	Params []any
	// Write runs the statement for its side effects; rows are only
	// collected when the statement returns them.
	Write bool
}

type Result struct {
	Columns      []string
	Rows         [][]any
	RowsAffected *int64
	Truncated    bool
	Duration     time.Duration
}

// HasRows reports whether the result carries a tabular payload rather than a
// bare affected-row count.
func (r Result) HasRows() bool {
	return len(r.Columns) > 0
}

type Executor interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

type FailureKind string

const (
	FailureSyntax     FailureKind = "syntax"
	FailureConstraint FailureKind = "constraint"
	FailureConnection FailureKind = "connection"
)

// ExecError is returned by executors for every statement failure. Message is
// the driver's raw text.
type ExecError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *ExecError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind) + " error"
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
