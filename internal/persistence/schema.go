package persistence

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS state (
	key TEXT PRIMARY KEY,
	value JSON NOT NULL,
	source TEXT,
	observed_at TEXT,
	confidence REAL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	log_id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL UNIQUE,
	timestamp_utc TEXT NOT NULL,
	event_type TEXT NOT NULL,
	source TEXT,
	severity TEXT NOT NULL,
	session_id TEXT,
	correlation_id TEXT,
	mode TEXT,
	payload JSON,
	tags JSON
);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
CREATE INDEX IF NOT EXISTS idx_events_correlation ON events(correlation_id);

CREATE TABLE IF NOT EXISTS intents (
	request_id TEXT PRIMARY KEY,
	session_id TEXT,
	timestamp_utc TEXT NOT NULL,
	mode TEXT NOT NULL,
	domain TEXT NOT NULL,
	urgency TEXT NOT NULL,
	user_text TEXT,
	needs_tools INTEGER NOT NULL,
	needs_clarification INTEGER NOT NULL,
	clarification_questions JSON,
	retrieval JSON,
	response_text TEXT
);

CREATE TABLE IF NOT EXISTS action_log (
	request_id TEXT NOT NULL,
	action_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	status TEXT NOT NULL,
	safety_level TEXT NOT NULL,
	mode_at_execution TEXT,
	parameters_json JSON,
	started_at TEXT,
	ended_at TEXT,
	error_code TEXT,
	error_message TEXT,
	output_json JSON,
	seq INTEGER NOT NULL,
	PRIMARY KEY (request_id, action_id)
);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
