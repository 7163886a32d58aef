// Package bridge drives the receive → parse → dispatch → respond cycle that
// turns JSON control messages into device writes.
package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the parsed form of one inbound command request.
type Envelope struct {
	Name       string
	Positional []string
	Keyword    map[string]string
}

// rawRequest is the wire shape of an inbound message. Command is decoded
// leniently: a missing or non-string value becomes an empty name, which the
// dispatcher reports as an unknown command rather than a parse failure.
type rawRequest struct {
	Command any      `json:"command"`
	Params  []string `json:"params"`
}

// ParseEnvelope decodes one inbound message. A missing or non-string
// "command" field yields an envelope with an empty name, which the
// dispatcher reports as an unknown command. Malformed JSON is a parse
// failure the loop converts to an error result.
func ParseEnvelope(data []byte) (Envelope, error) {
	var req rawRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return Envelope{}, fmt.Errorf("invalid request: %w", err)
	}

	name, _ := req.Command.(string)
	positional, keyword := SplitParams(req.Params)
	return Envelope{
		Name:       name,
		Positional: positional,
		Keyword:    keyword,
	}, nil
}

// SplitParams classifies each raw parameter token exactly once: tokens
// containing '=' become one keyword entry split at the first '=' (the value
// is kept verbatim, further '=' included); all others stay positional in
// order. Keyword keys have every '-' rewritten to '_' so CLI-style
// "--foo-bar=x" addresses encoder parameter "foo_bar". Values are never
// coerced; the encoder owns any numeric conversion.
func SplitParams(params []string) ([]string, map[string]string) {
	positional := make([]string, 0, len(params))
	keyword := make(map[string]string)

	for _, param := range params {
		key, value, found := strings.Cut(param, "=")
		if !found {
			positional = append(positional, param)
			continue
		}
		keyword[strings.ReplaceAll(key, "-", "_")] = value
	}
	return positional, keyword
}
