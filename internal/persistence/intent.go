package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// UpsertIntent replaces the intent row by request_id and re-inserts all of
// its ProposedAction rows in state "queued", per spec.md §4.A. Existing
// action_log rows for the request_id are dropped first so a re-submitted
// intent starts its actions fresh.
func (s *Store) UpsertIntent(ctx context.Context, intent Intent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	questions, err := json.Marshal(intent.ClarificationQuestions)
	if err != nil {
		return fmt.Errorf("marshal clarification_questions: %w", err)
	}
	retrieval, err := json.Marshal(intent.Retrieval)
	if err != nil {
		return fmt.Errorf("marshal retrieval: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO intents (request_id, session_id, timestamp_utc, mode, domain, urgency, user_text,
			needs_tools, needs_clarification, clarification_questions, retrieval, response_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO UPDATE SET
			session_id=excluded.session_id, timestamp_utc=excluded.timestamp_utc, mode=excluded.mode,
			domain=excluded.domain, urgency=excluded.urgency, user_text=excluded.user_text,
			needs_tools=excluded.needs_tools, needs_clarification=excluded.needs_clarification,
			clarification_questions=excluded.clarification_questions, retrieval=excluded.retrieval,
			response_text=excluded.response_text`,
		intent.RequestID, nullIfEmpty(intent.SessionID), intent.TimestampUTC, intent.Mode, intent.Domain,
		intent.Urgency, intent.UserText, boolToInt(intent.NeedsTools), boolToInt(intent.NeedsClarification),
		string(questions), string(retrieval), intent.ResponseText,
	)
	if err != nil {
		return fmt.Errorf("upsert intent: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM action_log WHERE request_id = ?`, intent.RequestID); err != nil {
		return fmt.Errorf("clear prior actions: %w", err)
	}

	for i, action := range intent.ProposedActions {
		params, err := json.Marshal(actionEnvelope{
			Parameters:           action.Parameters,
			ModeConstraints:      action.ModeConstraints,
			RequiresConfirmation: action.RequiresConfirmation,
			TimeoutMS:            action.TimeoutMS,
			Reason:               action.Reason,
			Confidence:           action.Confidence,
		})
		if err != nil {
			return fmt.Errorf("marshal action %s parameters: %w", action.ActionID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO action_log (request_id, action_id, tool_name, status, safety_level, mode_at_execution, parameters_json, seq)
			VALUES (?, ?, ?, 'queued', ?, ?, ?, ?)`,
			intent.RequestID, action.ActionID, action.ToolName, action.SafetyLevel, intent.Mode, string(params), i,
		)
		if err != nil {
			return fmt.Errorf("insert action %s: %w", action.ActionID, err)
		}
	}

	return tx.Commit()
}

// ActionEnvelope is the parameters_json shape: everything about a
// ProposedAction the Executor needs to re-derive at execution time besides
// tool_name/safety_level/status, which live in their own columns.
type ActionEnvelope = actionEnvelope

// actionEnvelope is the parameters_json shape: everything about a
// ProposedAction the Executor needs to re-derive at execution time besides
// tool_name/safety_level/status, which live in their own columns.
type actionEnvelope struct {
	Parameters           map[string]interface{} `json:"parameters"`
	ModeConstraints      []string               `json:"mode_constraints,omitempty"`
	RequiresConfirmation bool                   `json:"requires_confirmation,omitempty"`
	TimeoutMS            int                    `json:"timeout_ms"`
	Reason               string                 `json:"reason,omitempty"`
	Confidence           float64                `json:"confidence"`
}

// ParseActionEnvelope decodes an action_log row's parameters_json.
func ParseActionEnvelope(paramsJSON string) (ActionEnvelope, error) {
	var env actionEnvelope
	if paramsJSON == "" {
		return env, nil
	}
	err := json.Unmarshal([]byte(paramsJSON), &env)
	return env, err
}

// GetIntent fetches an intent row, or (nil, nil) if it doesn't exist.
func (s *Store) GetIntent(ctx context.Context, requestID string) (*Intent, error) {
	var (
		intent               Intent
		sessionID            sql.NullString
		needsTools           int
		needsClarification   int
		questionsJSON        sql.NullString
		retrievalJSON        sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT request_id, session_id, timestamp_utc, mode, domain, urgency, user_text,
			needs_tools, needs_clarification, clarification_questions, retrieval, response_text
		FROM intents WHERE request_id = ?`, requestID).Scan(
		&intent.RequestID, &sessionID, &intent.TimestampUTC, &intent.Mode, &intent.Domain, &intent.Urgency,
		&intent.UserText, &needsTools, &needsClarification, &questionsJSON, &retrievalJSON, &intent.ResponseText,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get intent %s: %w", requestID, err)
	}
	intent.SessionID = sessionID.String
	intent.NeedsTools = needsTools != 0
	intent.NeedsClarification = needsClarification != 0
	if questionsJSON.Valid && questionsJSON.String != "" {
		_ = json.Unmarshal([]byte(questionsJSON.String), &intent.ClarificationQuestions)
	}
	if retrievalJSON.Valid && retrievalJSON.String != "" {
		_ = json.Unmarshal([]byte(retrievalJSON.String), &intent.Retrieval)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT action_id, tool_name, status, safety_level, parameters_json
		FROM action_log WHERE request_id = ? ORDER BY seq ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list actions for %s: %w", requestID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var actionID, toolName, status, safetyLevel, paramsJSON string
		if err := rows.Scan(&actionID, &toolName, &status, &safetyLevel, &paramsJSON); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		var env actionEnvelope
		_ = json.Unmarshal([]byte(paramsJSON), &env)
		intent.ProposedActions = append(intent.ProposedActions, ProposedAction{
			ActionID:             actionID,
			ToolName:             toolName,
			Parameters:           env.Parameters,
			SafetyLevel:          safetyLevel,
			ModeConstraints:      env.ModeConstraints,
			RequiresConfirmation: env.RequiresConfirmation,
			TimeoutMS:            env.TimeoutMS,
			Reason:               env.Reason,
			Confidence:           env.Confidence,
		})
	}
	return &intent, rows.Err()
}

// ListQueuedActions returns the action_log rows for requestID in insertion
// order, whatever their status, optionally filtered to actionIDs.
func (s *Store) ListQueuedActions(ctx context.Context, requestID string, actionIDs []string) ([]ActionLogRow, error) {
	query := `SELECT request_id, action_id, tool_name, status, safety_level, mode_at_execution, parameters_json,
		started_at, ended_at, error_code, error_message, output_json, seq
		FROM action_log WHERE request_id = ?`
	args := []interface{}{requestID}
	if len(actionIDs) > 0 {
		query += " AND action_id IN (" + placeholders(len(actionIDs)) + ")"
		for _, id := range actionIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queued actions: %w", err)
	}
	defer rows.Close()

	var out []ActionLogRow
	for rows.Next() {
		var (
			r                                              ActionLogRow
			modeAtExecution, startedAt, endedAt             sql.NullString
			errorCode, errorMessage, outputJSON, paramsJSON sql.NullString
		)
		if err := rows.Scan(&r.RequestID, &r.ActionID, &r.ToolName, &r.Status, &r.SafetyLevel, &modeAtExecution,
			&paramsJSON, &startedAt, &endedAt, &errorCode, &errorMessage, &outputJSON, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan action_log row: %w", err)
		}
		r.ModeAtExecution = modeAtExecution.String
		r.StartedAt = startedAt.String
		r.EndedAt = endedAt.String
		r.ErrorCode = errorCode.String
		r.ErrorMessage = errorMessage.String
		r.OutputJSON = outputJSON.String
		r.ParametersJSON = paramsJSON.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateActionStatus mutates a single action_log row's status and related
// fields; the only writer of action_log after UpsertIntent, per spec.md §3.
func (s *Store) UpdateActionStatus(ctx context.Context, requestID, actionID, status string, startedAt, endedAt, errorCode, errorMessage, outputJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE action_log SET status = ?,
			started_at = COALESCE(NULLIF(?, ''), started_at),
			ended_at = COALESCE(NULLIF(?, ''), ended_at),
			error_code = NULLIF(?, ''),
			error_message = NULLIF(?, ''),
			output_json = NULLIF(?, '')
		WHERE request_id = ? AND action_id = ?`,
		status, startedAt, endedAt, errorCode, errorMessage, outputJSON, requestID, actionID,
	)
	if err != nil {
		return fmt.Errorf("update action status: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
