package resolution

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/ticketlens/internal/domain"
)

type output struct {
	DraftResponse string            `json:"draft_response"`
	FieldUpdates  map[string]string `json:"field_updates"`
	Reasoning     string            `json:"reasoning"`
	Confidence    string            `json:"confidence"`
}

// rawOutput tolerates field_updates values that are not strings (tags as a list, for example).
type rawOutput struct {
	DraftResponse string                     `json:"draft_response"`
	FieldUpdates  map[string]json.RawMessage `json:"field_updates"`
	Reasoning     string                     `json:"reasoning"`
	Confidence    string                     `json:"confidence"`
}

func parseOutput(raw string) (output, error) {
	body := stripFences(raw)
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return output{}, fmt.Errorf("no JSON object in model output: %w", domain.ErrMalformedOutput)
	}

	var r rawOutput
	if err := json.Unmarshal([]byte(body[start:end+1]), &r); err != nil {
		return output{}, fmt.Errorf("decode model output: %w: %w", domain.ErrMalformedOutput, err)
	}
	if strings.TrimSpace(r.DraftResponse) == "" {
		return output{}, fmt.Errorf("draft_response missing: %w", domain.ErrMalformedOutput)
	}

	out := output{DraftResponse: strings.TrimSpace(r.DraftResponse), Reasoning: r.Reasoning, Confidence: r.Confidence}
	if len(r.FieldUpdates) > 0 {
		out.FieldUpdates = make(map[string]string, len(r.FieldUpdates))
		for k, v := range r.FieldUpdates {
			out.FieldUpdates[k] = flatten(v)
		}
	}
	return out, nil
}

func flatten(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(v, &list); err == nil {
		return strings.Join(list, ",")
	}
	return strings.TrimSpace(string(v))
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
