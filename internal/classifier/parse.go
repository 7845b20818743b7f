package classifier

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ParseLabelScore extracts the first (label, score) pair from a model
// response. It accepts plain JSON (an array of predictions, a single
// prediction object, or a {"data": [...]} envelope) and Gradio SSE streams,
// where the first data line after "event: complete" wins.
func ParseLabelScore(raw string) (Prediction, error) {
	if strings.TrimSpace(raw) == "" {
		return Prediction{}, malformed("empty response")
	}

	s := strings.TrimLeft(raw, " \t\r\n")
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return parseJSON(s)
	}

	line, ok := sseDataLine(raw)
	if !ok {
		return Prediction{}, malformed("no data line in event stream")
	}
	return parseJSON(strings.TrimSpace(line[len("data:"):]))
}

func sseDataLine(raw string) (string, bool) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	for i, l := range lines {
		if !strings.EqualFold(l, "event: complete") {
			continue
		}
		for _, next := range lines[i+1:] {
			if hasPrefixFold(next, "data:") {
				return next, true
			}
		}
	}
	for _, l := range lines {
		if hasPrefixFold(l, "data:") {
			return l, true
		}
	}
	return "", false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func parseJSON(s string) (Prediction, error) {
	if strings.TrimSpace(s) == "" {
		return Prediction{}, malformed("empty json payload")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Prediction{}, malformed("invalid json: %v", err)
	}

	switch t := v.(type) {
	case []any:
		if len(t) > 0 {
			return predictionFromItem(t[0])
		}
	case map[string]any:
		if t["label"] != nil && t["score"] != nil {
			score, err := toFloat(t["score"])
			if err != nil {
				return Prediction{}, err
			}
			return Prediction{Label: toLabel(t["label"]), Score: score}, nil
		}
		if outer, ok := t["data"].([]any); ok && len(outer) > 0 {
			switch inner := outer[0].(type) {
			case []any:
				if len(inner) > 0 {
					return predictionFromItem(inner[0])
				}
			case map[string]any:
				return predictionFromItem(inner)
			}
		}
	}
	return Prediction{}, malformed("unexpected payload shape")
}

// predictionFromItem reads label (falling back to label_raw, then "unknown")
// and score (falling back to 0) from one prediction object.
func predictionFromItem(item any) (Prediction, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Prediction{}, malformed("prediction is %T, want object", item)
	}

	p := Prediction{Label: "unknown"}
	if l, ok := obj["label"]; ok && l != nil {
		p.Label = toLabel(l)
	} else if l, ok := obj["label_raw"]; ok && l != nil {
		p.Label = toLabel(l)
	}

	if sc, ok := obj["score"]; ok && sc != nil {
		f, err := toFloat(sc)
		if err != nil {
			return Prediction{}, err
		}
		p.Score = f
	}
	return p, nil
}

func toLabel(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, malformed("score %q: %v", t.String(), err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, malformed("score %q is not a number", t)
		}
		return f, nil
	default:
		return 0, malformed("score has type %T", v)
	}
}
