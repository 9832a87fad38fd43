package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"openinterface/internal/logging"
)

var errNoPayload = errors.New("no {...} payload in reply")

// ParseInstructions extracts the instruction set from free-form model output.
//
// Models wrap the JSON payload in prose, so the payload is taken to run from
// the first '{' to the last '}' inclusive. This is a heuristic: replies with
// several separate JSON fragments are sliced as one span and usually fail to
// decode.
func ParseInstructions(text string) (InstructionSet, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Empty(), &MalformedReplyError{Raw: text, Err: errNoPayload}
	}

	var set InstructionSet
	if err := json.Unmarshal([]byte(strings.TrimSpace(text[start:end+1])), &set); err != nil {
		return Empty(), &MalformedReplyError{Raw: text, Err: err}
	}
	if err := set.validate(); err != nil {
		return Empty(), &MalformedReplyError{Raw: text, Err: err}
	}
	return set, nil
}

// parseReply reduces a raw reply to an instruction set, logging rather than
// returning every failure.
func parseReply(reply *RawReply) InstructionSet {
	if reply == nil {
		logging.Debug("no reply to parse")
		return Empty()
	}
	if strings.TrimSpace(reply.Text) == "" {
		logging.Warn("reply has no text payload", "model", reply.Model)
		return Empty()
	}

	set, err := ParseInstructions(reply.Text)
	if err != nil {
		logging.Warn("failed to parse model reply",
			"model", reply.Model,
			"error", err,
			"raw", reply.Text)
		return Empty()
	}

	logging.Debug("parsed instruction set", "model", reply.Model, "steps", len(set.Steps), "done", set.Done)
	return set
}

// requestBody is the wire form of a request, shared by all backends.
type requestBody struct {
	Objective  string `json:"original_user_request"`
	Step       int    `json:"step_num"`
	Screenshot string `json:"screenshot,omitempty"`
}

func encodeRequestBody(objective string, step int, screenshot string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(requestBody{Objective: objective, Step: step, Screenshot: screenshot}); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
