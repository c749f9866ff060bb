package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivansh-2508/AI-DB/internal/archive"
	"github.com/Shivansh-2508/AI-DB/internal/conversation"
	"github.com/Shivansh-2508/AI-DB/internal/nl2sql"
	"github.com/Shivansh-2508/AI-DB/internal/observability"
	"github.com/Shivansh-2508/AI-DB/internal/query"
	"github.com/Shivansh-2508/AI-DB/internal/schema"
	"github.com/Shivansh-2508/AI-DB/internal/writegate"
)

const (
	DefaultSession = "default"

	confirmationPrefix = "This query will modify data. Do you want me to run it?"
	cancelledMessage   = "Query cancelled."
	schemaReadyMessage = "Schema cached and ready"
)

type Outcome string

const (
	OutcomeClarify      Outcome = "clarify"
	OutcomeResults      Outcome = "results"
	OutcomePendingWrite Outcome = "pending_write"
	OutcomeExecuted     Outcome = "executed"
	OutcomeCancelled    Outcome = "cancelled"
)

// Requester identifies who is asking and which of their sessions the request
// belongs to. Role is empty when the identity provider supplies none.
type Requester struct {
	Identity string
	Session  string
	Roles    []string
}

func (r Requester) key() string {
	return conversation.PartitionKey(r.Identity, r.session())
}

func (r Requester) session() string {
	if strings.TrimSpace(r.Session) == "" {
		return DefaultSession
	}
	return r.Session
}

type AskRequest struct {
	Message   string
	MessageID string
	ChartKind string
}

type Reply struct {
	Outcome    Outcome
	Message    string
	SQL        string
	Result     query.Result
	Chart      query.Chart
	ArchiveKey string
	History    []conversation.Turn
}

type Dependencies struct {
	Logger         *slog.Logger
	Schemas        *schema.Cache
	Conversations  conversation.Store
	Synthesizer    *nl2sql.Synthesizer
	Clarifier      *nl2sql.Clarifier
	Humanizer      *nl2sql.Humanizer
	Executor       query.Executor
	Classifier     writegate.Classifier
	Gate           *writegate.Gate
	Policy         writegate.Policy
	Archive        *archive.Archive
	RequestTimeout time.Duration
	NewMessageID   func() string
}

// Service runs the conversation pipeline: clarify, synthesize, gate writes,
// execute and explain failures. Work on one session is serialized; sessions
// never block each other.
type Service struct {
	logger        *slog.Logger
	schemas       *schema.Cache
	conversations conversation.Store
	synthesizer   *nl2sql.Synthesizer
	clarifier     *nl2sql.Clarifier
	humanizer     *nl2sql.Humanizer
	executor      query.Executor
	classifier    writegate.Classifier
	gate          *writegate.Gate
	policy        writegate.Policy
	archive       *archive.Archive
	timeout       time.Duration
	newMessageID  func() string
	locks         *sessionLocks
}

func New(deps Dependencies) (*Service, error) {
	switch {
	case deps.Schemas == nil:
		return nil, fmt.Errorf("schema cache is required")
	case deps.Conversations == nil:
		return nil, fmt.Errorf("conversation store is required")
	case deps.Synthesizer == nil:
		return nil, fmt.Errorf("synthesizer is required")
	case deps.Clarifier == nil:
		return nil, fmt.Errorf("clarifier is required")
	case deps.Humanizer == nil:
		return nil, fmt.Errorf("humanizer is required")
	case deps.Executor == nil:
		return nil, fmt.Errorf("executor is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := deps.Gate
	if gate == nil {
		gate = writegate.NewGate()
	}
	newMessageID := deps.NewMessageID
	if newMessageID == nil {
		newMessageID = uuid.NewString
	}
	return &Service{
		logger:        logger,
		schemas:       deps.Schemas,
		conversations: deps.Conversations,
		synthesizer:   deps.Synthesizer,
		clarifier:     deps.Clarifier,
		humanizer:     deps.Humanizer,
		executor:      deps.Executor,
		classifier:    deps.Classifier,
		gate:          gate,
		policy:        deps.Policy,
		archive:       deps.Archive,
		timeout:       deps.RequestTimeout,
		newMessageID:  newMessageID,
		locks:         newSessionLocks(),
	}, nil
}

// Ask records the utterance and carries it as far through the pipeline as it
// can go: a clarifying question, a staged write, or executed read results.
func (s *Service) Ask(ctx context.Context, who Requester, request AskRequest) (reply Reply, err error) {
	defer func() { observeAsk(reply, err) }()

	message := strings.TrimSpace(request.Message)
	if message == "" {
		return Reply{}, &Error{Kind: KindInvalidRequest, Message: "message is required"}
	}
	if err := validateRequester(who); err != nil {
		return Reply{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	release := s.locks.acquire(who.key())
	defer release()

	logger := s.requestLogger(who)
	description, err := s.schemas.Ensure(ctx, who.Identity)
	if err != nil {
		logger.ErrorContext(ctx, "schema unavailable", slog.String("error", err.Error()))
		return Reply{}, s.fail(ctx, who, &Error{Kind: KindSchemaUnavailable, Message: "database schema is unavailable", Err: err})
	}

	messageID := strings.TrimSpace(request.MessageID)
	if messageID == "" {
		messageID = s.newMessageID()
	}
	userTurn := conversation.NewText(conversation.RoleUser, message)
	userTurn.MessageID = messageID
	if err := s.record(ctx, who, userTurn); err != nil {
		return Reply{}, err
	}
	turns, err := s.conversations.List(ctx, who.key())
	if err != nil {
		return Reply{}, &Error{Kind: KindStoreFailure, Message: "failed to read conversation", Err: err}
	}

	if !nl2sql.IsListTablesRequest(message) {
		if question := s.clarifier.Clarify(ctx, message, description, turns); question != "" {
			if err := s.say(ctx, who, question); err != nil {
				return Reply{}, err
			}
			return s.reply(ctx, who, Reply{Outcome: OutcomeClarify, Message: question})
		}
	}

	synthesis, err := s.synthesizer.SynthesizeRequest(ctx, message, turns, description)
	if err != nil {
		return Reply{}, s.synthesisFailure(ctx, who, err)
	}
	logger.DebugContext(ctx, "sql ready", slog.String("sql", synthesis.SQL), slog.Int("attempts", synthesis.Attempts))

	if !synthesis.Catalog && s.classifier.IsMutating(synthesis.SQL) {
		return s.stageWrite(ctx, who, synthesis.SQL)
	}

	result, err := s.execute(ctx, query.Request{SQL: synthesis.SQL})
	if err != nil {
		return Reply{}, s.executionFailure(ctx, who, synthesis.SQL, err, description, true)
	}
	return s.deliverResults(ctx, who, OutcomeResults, synthesis.SQL, result, request.ChartKind)
}

// Confirm resolves the session's pending write. The pending entry is checked
// before the decision, so a confirm without one is always an invalid state.
func (s *Service) Confirm(ctx context.Context, who Requester, rawDecision string) (Reply, error) {
	if err := validateRequester(who); err != nil {
		return Reply{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	release := s.locks.acquire(who.key())
	defer release()

	if pending, ok := s.gate.Peek(who.key()); !ok || pending.Owner != who.Identity {
		return Reply{}, s.fail(ctx, who, noPendingError())
	}
	decision, err := writegate.ParseDecision(rawDecision)
	if err != nil {
		return Reply{}, s.fail(ctx, who, &Error{Kind: KindInvalidRequest, Message: "decision must be 'yes' or 'no'", Err: err})
	}
	pending, err := s.gate.Take(who.key(), who.Identity)
	if err != nil {
		return Reply{}, s.fail(ctx, who, noPendingError())
	}

	if decision == writegate.DecisionNo {
		if err := s.say(ctx, who, cancelledMessage); err != nil {
			return Reply{}, err
		}
		return s.reply(ctx, who, Reply{Outcome: OutcomeCancelled, Message: cancelledMessage, SQL: pending.SQL})
	}

	result, err := s.execute(ctx, query.Request{SQL: pending.SQL, Write: true})
	if err != nil {
		return Reply{}, s.executionFailure(ctx, who, pending.SQL, err, nil, false)
	}
	s.requestLogger(who).InfoContext(ctx, "confirmed write executed", slog.Int64("rows_affected", rowsAffected(result)))
	return s.deliverResults(ctx, who, OutcomeExecuted, pending.SQL, result, "")
}

// Cancel discards the session's pending write without running it.
func (s *Service) Cancel(ctx context.Context, who Requester) (Reply, error) {
	if err := validateRequester(who); err != nil {
		return Reply{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	release := s.locks.acquire(who.key())
	defer release()

	pending, err := s.gate.Take(who.key(), who.Identity)
	if err != nil {
		return Reply{}, s.fail(ctx, who, noPendingError())
	}
	if err := s.say(ctx, who, cancelledMessage); err != nil {
		return Reply{}, err
	}
	return s.reply(ctx, who, Reply{Outcome: OutcomeCancelled, Message: cancelledMessage, SQL: pending.SQL})
}

func (s *Service) History(ctx context.Context, who Requester) ([]conversation.Turn, error) {
	if err := validateRequester(who); err != nil {
		return nil, err
	}
	turns, err := s.conversations.List(ctx, who.key())
	if err != nil {
		return nil, &Error{Kind: KindStoreFailure, Message: "failed to read conversation", Err: err}
	}
	return turns, nil
}

// SaveMessage appends a client-authored turn. A turn whose MessageID was
// seen before replaces the earlier one in place.
func (s *Service) SaveMessage(ctx context.Context, who Requester, turn conversation.Turn) ([]conversation.Turn, error) {
	if err := validateRequester(who); err != nil {
		return nil, err
	}
	if turn.Content == nil || (!turn.IsResults() && strings.TrimSpace(turn.Text()) == "") {
		return nil, &Error{Kind: KindInvalidRequest, Message: "text (message) is required"}
	}
	release := s.locks.acquire(who.key())
	defer release()

	if err := s.record(ctx, who, turn); err != nil {
		return nil, err
	}
	return s.History(ctx, who)
}

// Clear drops the session transcript together with any write still awaiting
// confirmation.
func (s *Service) Clear(ctx context.Context, who Requester) error {
	if err := validateRequester(who); err != nil {
		return err
	}
	release := s.locks.acquire(who.key())
	defer release()

	if _, err := s.gate.Take(who.key(), who.Identity); err == nil {
		s.requestLogger(who).InfoContext(ctx, "pending write dropped with conversation")
	}
	if err := s.conversations.Clear(ctx, who.key()); err != nil {
		return &Error{Kind: KindStoreFailure, Message: "failed to clear conversation", Err: err}
	}
	return nil
}

type Prefetch struct {
	Message       string
	SchemaSummary map[string]int
	History       []conversation.Turn
}

// Prefetch warms the identity's schema entry and returns the session
// transcript, for clients opening a chat.
func (s *Service) Prefetch(ctx context.Context, who Requester) (Prefetch, error) {
	if err := validateRequester(who); err != nil {
		return Prefetch{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	description, err := s.schemas.Ensure(ctx, who.Identity)
	if err != nil {
		return Prefetch{}, s.fail(ctx, who, &Error{Kind: KindSchemaUnavailable, Message: "database schema is unavailable", Err: err})
	}
	history, err := s.History(ctx, who)
	if err != nil {
		return Prefetch{}, err
	}
	return Prefetch{Message: schemaReadyMessage, SchemaSummary: description.Summary(), History: history}, nil
}

func (s *Service) Schema(ctx context.Context, identity string) (schema.Description, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, &Error{Kind: KindInvalidRequest, Message: "identity is required"}
	}
	description, err := s.schemas.Ensure(ctx, identity)
	if err != nil {
		return nil, &Error{Kind: KindSchemaUnavailable, Message: "database schema is unavailable", Err: err}
	}
	return description, nil
}

func (s *Service) RefreshSchema(ctx context.Context, identity string) (schema.Description, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, &Error{Kind: KindInvalidRequest, Message: "identity is required"}
	}
	description, err := s.schemas.Refresh(ctx, identity)
	if err != nil {
		return nil, &Error{Kind: KindSchemaUnavailable, Message: "database schema is unavailable", Err: err}
	}
	s.logger.InfoContext(ctx, "schema refreshed", slog.String("identity", identity), slog.Int("tables", len(description)))
	return description, nil
}

// ArchivedResult restores a result set previously archived for identity.
func (s *Service) ArchivedResult(ctx context.Context, identity, key string) (archive.Table, error) {
	if s.archive == nil {
		return archive.Table{}, &Error{Kind: KindNotFound, Message: "result archive is not enabled"}
	}
	table, err := s.archive.Load(ctx, identity, key)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			return archive.Table{}, &Error{Kind: KindNotFound, Message: "archived result not found", Err: err}
		}
		return archive.Table{}, &Error{Kind: KindStoreFailure, Message: "failed to load archived result", Err: err}
	}
	return table, nil
}

func (s *Service) stageWrite(ctx context.Context, who Requester, sqlText string) (Reply, error) {
	if err := s.policy.Allow(who.Roles...); err != nil {
		message := fmt.Sprintf("Your role (%s) is not allowed to modify data.", strings.Join(who.Roles, ", "))
		if sayErr := s.say(ctx, who, message); sayErr != nil {
			return Reply{}, sayErr
		}
		return Reply{}, s.fail(ctx, who, &Error{Kind: KindWriteForbidden, Message: message, SQL: sqlText, Err: err})
	}

	s.gate.Hold(who.key(), writegate.Pending{SQL: sqlText, Owner: who.Identity})
	prompt := confirmationPrefix + "\n\n" + sqlText
	if err := s.say(ctx, who, prompt); err != nil {
		return Reply{}, err
	}
	s.requestLogger(who).InfoContext(ctx, "write staged for confirmation")
	return s.reply(ctx, who, Reply{Outcome: OutcomePendingWrite, Message: prompt, SQL: sqlText})
}

func (s *Service) execute(ctx context.Context, request query.Request) (query.Result, error) {
	raw, err := s.executor.Execute(ctx, request)
	if err != nil {
		return query.Result{}, err
	}
	return query.Shape(raw)
}

func (s *Service) deliverResults(ctx context.Context, who Requester, outcome Outcome, sqlText string, result query.Result, chartKind string) (Reply, error) {
	reply := Reply{Outcome: outcome, SQL: sqlText, Result: result}

	if !result.HasRows() {
		reply.Message = fmt.Sprintf("Query executed. %d row(s) affected.", rowsAffected(result))
		if err := s.say(ctx, who, reply.Message); err != nil {
			return Reply{}, err
		}
		return s.reply(ctx, who, reply)
	}

	reply.Chart = query.DetectChart(result.Columns, result.Rows).WithKind(chartKind)
	if s.archive != nil && outcome == OutcomeResults {
		key, err := s.archive.Save(ctx, who.Identity, result.Columns, result.Rows)
		if err != nil {
			s.requestLogger(who).WarnContext(ctx, "result archive failed", slog.String("error", err.Error()))
		} else {
			reply.ArchiveKey = key
		}
	}

	turn := conversation.Turn{
		Role: conversation.RoleAssistant,
		Content: conversation.Results{
			SQL:        sqlText,
			Columns:    result.Columns,
			Rows:       result.Rows,
			ArchiveKey: reply.ArchiveKey,
		},
		MessageID: s.newMessageID(),
	}
	if err := s.record(ctx, who, turn); err != nil {
		if reply.ArchiveKey != "" {
			if discardErr := s.archive.Discard(context.WithoutCancel(ctx), who.Identity, reply.ArchiveKey); discardErr != nil {
				s.requestLogger(who).WarnContext(ctx, "orphaned archive not removed", slog.String("key", reply.ArchiveKey), slog.String("error", discardErr.Error()))
			}
		}
		return Reply{}, err
	}
	return s.reply(ctx, who, reply)
}

func (s *Service) synthesisFailure(ctx context.Context, who Requester, err error) error {
	var ungrounded *nl2sql.UngroundedError
	var gateway *nl2sql.GatewayError
	var failure *Error
	switch {
	case errors.As(err, &ungrounded):
		failure = &Error{
			Kind:    KindSynthesisUngrounded,
			Message: "I couldn't match that request to any table or column in your database.",
			SQL:     ungrounded.SQL,
			Err:     err,
		}
	case errors.As(err, &gateway):
		failure = &Error{Kind: KindGatewayFailure, Message: "The SQL generator is unavailable right now. Please try again.", Err: err}
	case errors.Is(err, nl2sql.ErrNoRequest):
		failure = &Error{Kind: KindInvalidRequest, Message: "There is no request to answer yet.", Err: err}
	default:
		failure = &Error{Kind: KindGatewayFailure, Message: "SQL generation failed.", Err: err}
	}
	s.requestLogger(who).WarnContext(ctx, "sql synthesis failed", slog.String("kind", string(failure.Kind)), slog.String("error", err.Error()))
	if sayErr := s.say(ctx, who, failure.Message); sayErr != nil {
		return sayErr
	}
	return s.fail(ctx, who, failure)
}

// executionFailure explains the driver error and, for asks, proposes next
// requests. The statement is never retried.
func (s *Service) executionFailure(ctx context.Context, who Requester, sqlText string, err error, description schema.Description, suggest bool) error {
	failure := &Error{Kind: KindExecutionFailure, SQL: sqlText, Failure: query.FailureSyntax, Err: err}
	var execErr *query.ExecError
	if errors.As(err, &execErr) {
		failure.Failure = execErr.Kind
	}
	s.requestLogger(who).WarnContext(ctx, "statement failed", slog.String("failure", string(failure.Failure)), slog.String("error", err.Error()))

	turns, listErr := s.conversations.List(ctx, who.key())
	if listErr != nil {
		turns = nil
	}
	failure.Message = s.humanizer.Explain(ctx, err.Error(), turns)
	if sayErr := s.say(ctx, who, failure.Message); sayErr != nil {
		return sayErr
	}
	if suggest {
		failure.Suggestions = s.humanizer.Suggest(ctx, description, turns)
		if len(failure.Suggestions) > 0 {
			if sayErr := s.say(ctx, who, "You can try:\n- "+strings.Join(failure.Suggestions, "\n- ")); sayErr != nil {
				return sayErr
			}
		}
	}
	return s.fail(ctx, who, failure)
}

// record appends a turn even when the request deadline has passed, so the
// transcript reflects what the caller was told.
func (s *Service) record(ctx context.Context, who Requester, turn conversation.Turn) error {
	if err := s.conversations.Append(context.WithoutCancel(ctx), who.key(), turn); err != nil {
		return &Error{Kind: KindStoreFailure, Message: "failed to record conversation", Err: err}
	}
	return nil
}

func (s *Service) say(ctx context.Context, who Requester, text string) error {
	turn := conversation.NewText(conversation.RoleAssistant, text)
	turn.MessageID = s.newMessageID()
	return s.record(ctx, who, turn)
}

func (s *Service) reply(ctx context.Context, who Requester, reply Reply) (Reply, error) {
	history, err := s.conversations.List(context.WithoutCancel(ctx), who.key())
	if err != nil {
		return Reply{}, &Error{Kind: KindStoreFailure, Message: "failed to read conversation", Err: err}
	}
	reply.History = history
	return reply, nil
}

// fail attaches the transcript snapshot to failure.
func (s *Service) fail(ctx context.Context, who Requester, failure *Error) error {
	history, err := s.conversations.List(context.WithoutCancel(ctx), who.key())
	if err != nil {
		s.requestLogger(who).WarnContext(ctx, "conversation snapshot unavailable", slog.String("error", err.Error()))
		return failure
	}
	failure.History = history
	return failure
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) requestLogger(who Requester) *slog.Logger {
	return s.logger.With(slog.String("identity", who.Identity), slog.String("session", who.session()))
}

func validateRequester(who Requester) error {
	if strings.TrimSpace(who.Identity) == "" {
		return &Error{Kind: KindInvalidRequest, Message: "identity is required"}
	}
	return nil
}

func noPendingError() *Error {
	return &Error{Kind: KindInvalidConfirmationState, Message: "No pending query for this session", Err: writegate.ErrNoPending}
}

func rowsAffected(result query.Result) int64 {
	if result.RowsAffected == nil {
		return 0
	}
	return *result.RowsAffected
}

func observeAsk(reply Reply, err error) {
	if err != nil {
		var failure *Error
		if errors.As(err, &failure) {
			observability.ObserveAskOutcome(string(failure.Kind))
			return
		}
		observability.ObserveAskOutcome("error")
		return
	}
	observability.ObserveAskOutcome(string(reply.Outcome))
}
