// Package advisory implements the Advisory Client (spec.md §4.F): it turns a
// user utterance plus retrieved context into an Intent proposal, either by
// echoing a caller-supplied fallback (stub mode) or by calling a local LLM
// planner over HTTP (phi3 mode) and validating whatever comes back against
// the intent contract before it is ever allowed to reach the Policy Engine
// or Router.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/therealmrnerd/watchkeeper-vnext/internal/circuit"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/ingest"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/persistence"
)

// Mode selects how the client produces a proposal.
type Mode string

const (
	ModeStub Mode = "stub"
	ModePhi3 Mode = "phi3"
)

// Meta describes how a proposal came to be, for logging and /assist
// diagnostics — it is never part of the Intent contract itself.
type Meta struct {
	Mode          Mode
	UsedFallback  bool
	ValidationErr string
	LatencyMS     int64
}

// Client is the Advisory Client.
type Client struct {
	mode       Mode
	endpointURL string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *circuit.Breaker
}

// Config configures a Client.
type Config struct {
	Mode        Mode
	EndpointURL string
	Model       string
	Timeout     time.Duration
}

// New builds a Client. In ModeStub the endpoint/model are unused. The
// breaker wraps only the phi3 HTTP call — stub mode has nothing to trip.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Client{
		mode:        cfg.Mode,
		endpointURL: cfg.EndpointURL,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		httpClient:  &http.Client{Timeout: cfg.Timeout + time.Second},
		breaker:     circuit.NewBreaker("advisory-phi3", circuit.DefaultConfig()),
	}
}

type phi3Request struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type phi3Response struct {
	Response string `json:"response"`
	Output   string `json:"output"`
}

func (r phi3Response) text() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Output
}

// GenerateIntentProposal produces a validated Intent for the given prompt.
// fallback is a caller-built "no tools, ask for clarification" Intent used
// verbatim in stub mode and as the seed for safeNoAction whenever phi3 mode
// fails at any stage (transport error, non-JSON output, schema violation, or
// semantic validation failure) — the contract guarantee is that this
// function NEVER returns an Intent that failed ingest.ValidateIntent.
func (c *Client) GenerateIntentProposal(ctx context.Context, prompt string, fallback persistence.Intent) (persistence.Intent, Meta) {
	started := time.Now()

	if c.mode != ModePhi3 {
		proposal := fallback
		if err := ingest.ValidateIntent(proposal); err != nil {
			return c.safeNoAction(fallback, err.Error()), Meta{Mode: ModeStub, UsedFallback: true, ValidationErr: err.Error()}
		}
		return proposal, Meta{Mode: ModeStub, UsedFallback: true, LatencyMS: time.Since(started).Milliseconds()}
	}

	raw, err := c.callPhi3(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("advisory: phi3 call failed, falling back to safe no-action")
		errText := fmt.Sprintf("llm_request_error:%v", err)
		return c.safeNoAction(fallback, errText), Meta{Mode: ModePhi3, UsedFallback: true, ValidationErr: errText, LatencyMS: time.Since(started).Milliseconds()}
	}

	proposal, err := c.parseAndValidate(raw)
	if err != nil {
		log.Warn().Err(err).Msg("advisory: phi3 output failed contract or semantic validation")
		return c.safeNoAction(fallback, err.Error()), Meta{Mode: ModePhi3, UsedFallback: true, ValidationErr: err.Error(), LatencyMS: time.Since(started).Milliseconds()}
	}

	return proposal, Meta{Mode: ModePhi3, LatencyMS: time.Since(started).Milliseconds()}
}

func (c *Client) callPhi3(ctx context.Context, prompt string) (string, error) {
	if !c.breaker.Allow() {
		return "", circuit.ErrCircuitOpen
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(phi3Request{Model: c.model, Prompt: prompt, Stream: false, Format: "json"})
	if err != nil {
		c.breaker.RecordFailureWithCategory(err, circuit.ErrorCategoryInvalid)
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpointURL, bytes.NewReader(body))
	if err != nil {
		c.breaker.RecordFailureWithCategory(err, circuit.ErrorCategoryInvalid)
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailureWithCategory(err, circuit.CategorizeError(err))
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.breaker.RecordFailureWithCategory(err, circuit.ErrorCategoryTransient)
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("advisory: planner returned %d: %s", resp.StatusCode, string(respBody))
		c.breaker.RecordFailureWithCategory(err, circuit.CategorizeError(err))
		return "", err
	}

	var parsed phi3Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.breaker.RecordFailureWithCategory(err, circuit.ErrorCategoryInvalid)
		return "", fmt.Errorf("advisory: planner response was not valid JSON envelope: %w", err)
	}

	c.breaker.RecordSuccess()
	return parsed.text(), nil
}

// parseAndValidate extracts the first balanced JSON object from raw planner
// output, validates it against the intent contract, then against the
// semantic rules in internal/ingest. The error text it returns is what ends
// up in retrieval.llm_validation_error, so it follows spec.md §4.F's named
// forms: "invalid_json" for extraction failures, "schema_validation_error:
// <msg>" for anything caught by the contract or semantic checks, and (from
// the transport-error path in GenerateIntentProposal) "llm_request_error:
// <msg>" when the planner call itself fails before any output exists to
// parse.
func (c *Client) parseAndValidate(raw string) (persistence.Intent, error) {
	var proposal persistence.Intent

	objText, err := extractJSONObject(raw)
	if err != nil {
		return proposal, errors.New("invalid_json")
	}

	schema, err := compiledSchema()
	if err != nil {
		return proposal, fmt.Errorf("schema_validation_error:%v", err)
	}

	var generic interface{}
	if err := json.Unmarshal([]byte(objText), &generic); err != nil {
		return proposal, errors.New("invalid_json")
	}
	if err := schema.Validate(generic); err != nil {
		return proposal, fmt.Errorf("schema_validation_error:%v", err)
	}

	if err := json.Unmarshal([]byte(objText), &proposal); err != nil {
		return proposal, fmt.Errorf("schema_validation_error:%v", err)
	}

	if err := ingest.ValidateIntent(proposal); err != nil {
		return proposal, fmt.Errorf("schema_validation_error:%v", err)
	}

	return proposal, nil
}

// safeNoAction builds the degraded, always-valid Intent returned whenever
// phi3 mode cannot produce a trustworthy proposal. It carries no tool calls
// and asks the user to clarify, per spec.md §4.F.
func (c *Client) safeNoAction(fallback persistence.Intent, errorText string) persistence.Intent {
	proposal := fallback
	proposal.NeedsTools = false
	proposal.NeedsClarification = true
	proposal.ClarificationQuestions = []string{"Please confirm the exact action you want me to take."}
	proposal.ProposedActions = []persistence.ProposedAction{}
	proposal.ResponseText = "I need clarification before taking any action."

	if proposal.Retrieval == nil {
		proposal.Retrieval = map[string]interface{}{}
	}
	proposal.Retrieval["llm_validation_error"] = truncateError(errorText)

	if err := ingest.ValidateIntent(proposal); err != nil {
		log.Error().Err(err).Msg("advisory: safeNoAction itself failed validation, this is a bug")
	}
	return proposal
}

func truncateError(s string) string {
	const maxLen = 500
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...(truncated)"
}
