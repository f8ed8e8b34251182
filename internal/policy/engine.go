package policy

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/therealmrnerd/watchkeeper-vnext/internal/standingorders"
)

// Engine is the Policy Engine: a deterministic decision function over a
// Standing Orders document, plus the confirmation ledger and rate windows
// it needs to enforce time-bounded gates. All of policy document access,
// confirmation recording, and rate-window mutation happen under a single
// coarse mutex (spec.md §5) — this is deliberately not sharded per bucket.
type Engine struct {
	mu sync.Mutex

	path    string
	doc     *standingorders.Document
	modTime time.Time

	ledger  confirmationLedger
	windows *rateWindows

	// fsDirty is set by an optional fsnotify watcher as a hint that the
	// document may have changed. maybeReload treats the mtime comparison as
	// authoritative and ORs fsDirty into it, so a missed or spurious fsnotify
	// event never causes staleness beyond the next decision call, and a
	// same-second edit that fsnotify caught but mtime can't distinguish
	// still triggers a reload.
	fsDirty bool
}

// NewEngine loads the Standing Orders document at path and returns a ready
// Engine, or the load error (DENY_POLICY_INVALID surfaces at decision time
// for malformed documents encountered later via maybeReload; a bad document
// at startup is a load-time failure, per spec.md §7).
func NewEngine(path string) (*Engine, error) {
	doc, modTime, err := standingorders.Load(path)
	if err != nil {
		return nil, err
	}
	return &Engine{
		path:    path,
		doc:     doc,
		modTime: modTime,
		windows: newRateWindows(),
	}, nil
}

// MarkDirty is called by an fsnotify watcher when the underlying file
// changes on disk. It does not itself reload; the next evaluate() call
// still performs the authoritative mtime check.
func (e *Engine) MarkDirty() {
	e.mu.Lock()
	e.fsDirty = true
	e.mu.Unlock()
}

// maybeReload re-parses the Standing Orders file only if its mtime changed
// since the last load. Must be called with e.mu held, and must never block
// on anything but the stat call below — per spec.md §5 this runs inside the
// same critical section as rate-window trimming and confirmation recording,
// so a full read+parse on every call is not acceptable; only a real change
// on disk pays that cost. The stat-based mtime comparison is always the
// authoritative check, so policy reload keeps working with no fsnotify
// watcher attached at all. fsDirty (set by an optional fsnotify watcher) is
// ORed into that decision rather than ignored: some filesystems only carry
// one-second mtime resolution, so an edit that lands in the same second as
// the previous load can leave ModTime unchanged even though the content
// changed — fsDirty catches exactly that case and forces the reload attempt
// anyway.
func (e *Engine) maybeReload() {
	dirty := e.fsDirty
	e.fsDirty = false

	info, err := os.Stat(e.path)
	if err != nil {
		log.Warn().Err(err).Str("path", e.path).Msg("standing orders stat failed, keeping previous document")
		return
	}
	if info.ModTime().Equal(e.modTime) && !dirty {
		return
	}

	doc, modTime, err := standingorders.Load(e.path)
	if err != nil {
		log.Warn().Err(err).Str("path", e.path).Msg("standing orders reload failed, keeping previous document")
		return
	}
	e.doc = doc
	e.modTime = modTime
	log.Info().Str("path", e.path).Msg("standing orders reloaded")
}

// RecordConfirmation canonicalizes tool_name, trims inputs, and
// garbage-collects ledger entries older than ts-3600s.
func (e *Engine) RecordConfirmation(incidentID, toolName, token string, ts float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	canonical := standingorders.Canonicalize(toolName)
	e.ledger.record(incidentID, canonical, token, ts)
}

// ConfirmWindowSeconds exposes the currently loaded document's confirmation
// window, for callers outside the mutex-protected Evaluate path (e.g. the
// Router's action-metadata gate) that need to stamp a confirm_by_ts
// consistent with what Evaluate itself would compute.
func (e *Engine) ConfirmWindowSeconds() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Defaults.ConfirmWindow()
}

