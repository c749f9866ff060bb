package assistant

import (
	"github.com/Shivansh-2508/AI-DB/internal/conversation"
	"github.com/Shivansh-2508/AI-DB/internal/query"
)

type Kind string

const (
	KindInvalidRequest           Kind = "invalid_request"
	KindSchemaUnavailable        Kind = "schema_unavailable"
	KindSynthesisUngrounded      Kind = "synthesis_ungrounded"
	KindGatewayFailure           Kind = "gateway_failure"
	KindWriteForbidden           Kind = "write_forbidden"
	KindInvalidConfirmationState Kind = "invalid_confirmation_state"
	KindExecutionFailure         Kind = "execution_failure"
	KindNotFound                 Kind = "not_found"
	KindStoreFailure             Kind = "store_failure"
)

// Error is returned by every Service operation that cannot complete. History
// is the transcript as it stood when the operation gave up, when it could be
// read.
type Error struct {
	Kind        Kind
	Message     string
	SQL         string
	Suggestions []string
	Failure     query.FailureKind
	History     []conversation.Turn
	Err         error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}
