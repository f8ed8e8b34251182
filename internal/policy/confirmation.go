package policy

import "strings"

// confirmationRecord is a single user-granted confirmation, keyed by
// (incident_id, canonical tool_name) and optionally narrowed by token.
type confirmationRecord struct {
	IncidentID string
	ToolName   string
	Token      string
	TS         float64
}

// confirmationLedger is an append-only, time-bounded record of granted
// confirmations. It is intentionally process-local: a restart invalidates
// every outstanding confirmation. Callers must hold Engine's mutex; the
// ledger itself does no locking of its own, matching the teacher's pattern
// of one coarse lock owning several related pieces of state (see
// internal/ai/approval.Store, which instead takes its own lock — we don't,
// because spec.md §5 mandates a SINGLE mutex across policy document,
// ledger, and rate windows).
type confirmationLedger struct {
	records []confirmationRecord
}

// record appends a confirmation and garbage-collects anything older than
// ts-3600s, per spec.md §4.C.
func (l *confirmationLedger) record(incidentID, toolName, token string, ts float64) {
	toolName = strings.TrimSpace(toolName)
	incidentID = strings.TrimSpace(incidentID)
	token = strings.TrimSpace(token)

	l.records = append(l.records, confirmationRecord{
		IncidentID: incidentID,
		ToolName:   toolName,
		Token:      token,
		TS:         ts,
	})
	l.gc(ts)
}

func (l *confirmationLedger) gc(now float64) {
	cutoff := now - 3600
	kept := l.records[:0]
	for _, r := range l.records {
		if r.TS >= cutoff {
			kept = append(kept, r)
		}
	}
	l.records = kept
}

// mostRecent returns the newest confirmation for (incidentID, toolName),
// optionally narrowed by token, or false if none exists.
func (l *confirmationLedger) mostRecent(incidentID, toolName, token string) (confirmationRecord, bool) {
	var best confirmationRecord
	found := false
	for _, r := range l.records {
		if r.IncidentID != incidentID || r.ToolName != toolName {
			continue
		}
		if token != "" && r.Token != token {
			continue
		}
		if !found || r.TS > best.TS {
			best = r
			found = true
		}
	}
	return best, found
}
