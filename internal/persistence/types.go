package persistence

// Event mirrors spec.md §3's append-only audit row.
type Event struct {
	EventID       string                 `json:"event_id"`
	TimestampUTC  string                 `json:"timestamp_utc"`
	EventType     string                 `json:"event_type"`
	Source        string                 `json:"source"`
	Severity      string                 `json:"severity"`
	SessionID     string                 `json:"session_id,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Mode          string                 `json:"mode,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
}

// StateItem is one row of the current-state map.
type StateItem struct {
	Key         string      `json:"key"`
	Value       interface{} `json:"value"`
	Source      string      `json:"source,omitempty"`
	ObservedAt  string      `json:"observed_at,omitempty"`
	Confidence  *float64    `json:"confidence,omitempty"`
}

// ProposedAction mirrors spec.md §3.
type ProposedAction struct {
	ActionID              string                 `json:"action_id"`
	ToolName              string                 `json:"tool_name"`
	Parameters            map[string]interface{} `json:"parameters"`
	SafetyLevel           string                 `json:"safety_level"`
	ModeConstraints       []string               `json:"mode_constraints,omitempty"`
	RequiresConfirmation  bool                   `json:"requires_confirmation,omitempty"`
	TimeoutMS             int                    `json:"timeout_ms"`
	Reason                string                 `json:"reason,omitempty"`
	Confidence            float64                `json:"confidence"`
}

// Intent mirrors spec.md §3's Intent(proposal) entity.
type Intent struct {
	SchemaVersion          string           `json:"schema_version"`
	RequestID              string           `json:"request_id"`
	SessionID              string           `json:"session_id,omitempty"`
	TimestampUTC           string           `json:"timestamp_utc"`
	Mode                   string           `json:"mode"`
	Domain                 string           `json:"domain"`
	Urgency                string           `json:"urgency"`
	UserText               string           `json:"user_text"`
	NeedsTools             bool             `json:"needs_tools"`
	NeedsClarification     bool             `json:"needs_clarification"`
	ClarificationQuestions []string         `json:"clarification_questions,omitempty"`
	Retrieval              map[string]interface{} `json:"retrieval,omitempty"`
	ProposedActions        []ProposedAction `json:"proposed_actions"`
	ResponseText           string           `json:"response_text"`
}

// ActionLogRow is one persisted row of the action_log table.
type ActionLogRow struct {
	RequestID       string
	ActionID        string
	ToolName        string
	Status          string
	SafetyLevel     string
	ModeAtExecution string
	ParametersJSON  string
	StartedAt       string
	EndedAt         string
	ErrorCode       string
	ErrorMessage    string
	OutputJSON      string
	Seq             int
}

// EventFilter narrows listEvents; zero values mean "no filter".
type EventFilter struct {
	Limit         int
	EventType     string
	SessionID     string
	CorrelationID string
	Since         string
}
