package report

import (
	"encoding/json"
	"regexp"
	"strings"
)

// reply is the structured shape requested from the model.
type reply struct {
	Summary         string   `json:"summary"`
	KeyMetrics      []string `json:"key_metrics"`
	Observations    []string `json:"observations"`
	Recommendations []string `json:"recommendations"`
}

func (r reply) populated() bool {
	return r.Summary != "" || len(r.KeyMetrics) > 0 || len(r.Observations) > 0 || len(r.Recommendations) > 0
}

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	braceJSON  = regexp.MustCompile(`(?s)\{.*\}`)
)

// parseReply extracts the structured report from a model reply. Models wrap
// JSON in markdown fences or surround it with prose often enough that each
// laxer form is tried in turn. A reply with no usable JSON degrades to
// summary-only; parsing never fails.
func parseReply(raw string) (reply, bool) {
	trimmed := strings.TrimSpace(raw)

	var r reply
	if err := json.Unmarshal([]byte(trimmed), &r); err == nil && r.populated() {
		return r, true
	}

	if m := fencedJSON.FindStringSubmatch(trimmed); m != nil {
		r = reply{}
		if err := json.Unmarshal([]byte(m[1]), &r); err == nil && r.populated() {
			return r, true
		}
	}

	if m := braceJSON.FindString(trimmed); m != "" {
		r = reply{}
		if err := json.Unmarshal([]byte(m), &r); err == nil && r.populated() {
			return r, true
		}
	}

	return reply{Summary: trimmed}, false
}
