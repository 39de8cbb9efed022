package store

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/trial-workload/internal/model"
)

// JSON columns are shared with other clients that write snake_case keys.
// Decoding goes through normalizeKeys so both spellings land in the
// camelCase model fields.

func decodeBreakdown(raw []byte) ([]model.StudyEffort, error) {
	if isEmptyJSON(raw) {
		return nil, nil
	}
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, eris.Wrap(err, "store: decode breakdown")
	}
	if len(entries) == 0 {
		return nil, nil
	}
	normalized := make([]any, len(entries))
	for i, e := range entries {
		normalized[i] = normalizeKeys(e)
	}
	var out []model.StudyEffort
	if err := remarshal(normalized, &out); err != nil {
		return nil, eris.Wrap(err, "store: decode breakdown")
	}
	return out, nil
}

func decodeRubric(raw []byte) (model.RubricSelection, error) {
	var sel model.RubricSelection
	if isEmptyJSON(raw) {
		return sel, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sel, eris.Wrap(err, "store: decode rubric")
	}
	if err := remarshal(normalizeKeys(m), &sel); err != nil {
		return sel, eris.Wrap(err, "store: decode rubric")
	}
	return sel, nil
}

// decodeVisitWeights keeps keys as written; they are visit types, not
// field names.
func decodeVisitWeights(raw []byte) (map[string]float64, error) {
	out := map[string]float64{}
	if isEmptyJSON(raw) {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "store: decode visit weights")
	}
	if out == nil {
		out = map[string]float64{}
	}
	return out, nil
}

func encodeJSON(v any, what string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrapf(err, "store: encode %s", what)
	}
	return b, nil
}

func isEmptyJSON(raw []byte) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func remarshal(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// normalizeKeys rewrites snake_case object keys to camelCase. camelCase
// keys win when both spellings are present.
func normalizeKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = normalizeKeys(nested)
		}
		ck := camelCase(k)
		if _, exists := out[ck]; exists && ck != k {
			continue
		}
		out[ck] = v
	}
	return out
}

func camelCase(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
