package ingest

import (
	"encoding/json"
	"io"
)

// DecodeStrict decodes a single JSON object from r into v, rejecting unknown
// top-level keys, per spec.md §4.H.
func DecodeStrict(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalid("invalid request body: %v", err)
	}
	if dec.More() {
		return invalid("invalid request body: trailing data after JSON object")
	}
	return nil
}
