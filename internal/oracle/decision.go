package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const fence = "```"

// Decision is the model's verdict on one frame.
type Decision struct {
	ShouldReply     bool   `json:"should_reply"`
	MessageDetected string `json:"message_detected"`
	Reply           string `json:"reply"`
}

// Actionable reports whether the decision asks for a non-blank reply.
func (d Decision) Actionable() bool {
	return d.ShouldReply && strings.TrimSpace(d.Reply) != ""
}

// ErrUnbalancedFence is wrapped when a code fence is opened but never closed.
var ErrUnbalancedFence = errors.New("unbalanced code fence")

// MalformedResponseError carries model output that could not be parsed.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed oracle response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ParseDecision decodes the model's JSON answer. The JSON may be wrapped in a
// ```json or bare ``` fence. Anything else (prose, an unclosed fence, wrong
// field types) is a *MalformedResponseError and a zero Decision.
func ParseDecision(raw string) (Decision, error) {
	body, err := stripFence(strings.TrimSpace(raw))
	if err != nil {
		return Decision{}, &MalformedResponseError{Raw: raw, Err: err}
	}
	if body == "" {
		return Decision{}, &MalformedResponseError{Raw: raw, Err: errors.New("empty response")}
	}

	var d Decision
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return Decision{}, &MalformedResponseError{Raw: raw, Err: err}
	}
	return d, nil
}

// stripFence returns the contents of the first fenced block, or s unchanged
// when it has no fence.
func stripFence(s string) (string, error) {
	open := strings.Index(s, fence+"json")
	skip := len(fence) + len("json")
	if open < 0 {
		open = strings.Index(s, fence)
		skip = len(fence)
	}
	if open < 0 {
		return s, nil
	}
	rest := s[open+skip:]
	end := strings.Index(rest, fence)
	if end < 0 {
		return "", ErrUnbalancedFence
	}
	return strings.TrimSpace(rest[:end]), nil
}
