package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// Fingerprint computes a structural hash of a value's sanitized projection.
// Two values fingerprint equal iff their projections are structurally equal,
// independent of key order or formatting. The reconciler's no-op guard
// compares fingerprints instead of retaining full deep copies.
//
// Sanitization drops every object key prefixed with "__": such keys carry
// transient client-side annotations (render hints, selection markers) that
// must not count as data changes and must never reach the remote store.
func Fingerprint(value json.RawMessage) (uint64, error) {
	projection, err := Sanitize(value)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(projection), nil
}

// Sanitize returns the canonical JSON projection used for change detection
// and persistence: "__"-prefixed object keys removed, map keys sorted,
// formatting normalized.
func Sanitize(value json.RawMessage) (json.RawMessage, error) {
	if len(value) == 0 {
		return json.RawMessage(`null`), nil
	}

	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, zerr.Wrap(err, "failed to decode value for sanitization")
	}

	out, err := json.Marshal(stripTransient(decoded))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to encode sanitized value")
	}
	return out, nil
}

func stripTransient(v any) any {
	switch t := v.(type) {
	case map[string]any:
		clean := make(map[string]any, len(t))
		for k, child := range t {
			if strings.HasPrefix(k, "__") {
				continue
			}
			clean[k] = stripTransient(child)
		}
		return clean
	case []any:
		for i, child := range t {
			t[i] = stripTransient(child)
		}
		return t
	default:
		return v
	}
}

// IsEmptyList reports whether a value is an empty JSON collection. Null and
// absent values count as empty: a list kind that has never loaded must not
// trip the empty-regression guard.
func IsEmptyList(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	if trimmed[0] != '[' {
		return false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return false
	}
	return len(items) == 0
}
