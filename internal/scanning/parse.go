package scanning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a model response contains no JSON payload at all
var ErrNoJSON = errors.New("no JSON payload found in response")

// ParseError is returned when a model response contains something that looks like JSON
// but does not decode into the requested shape
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing model JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StripCodeFence removes a ```json ... ``` or ``` ... ``` wrapper around a model response
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)

	if _, after, ok := strings.Cut(text, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(text, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return text
}

// ExtractJSON decodes the JSON payload of a model response into v.
// Code fences are stripped first; if the remainder still has chatter around the payload,
// the outermost object or array is cut out and decoded instead.
func ExtractJSON(text string, v any) error {
	body := StripCodeFence(text)
	if body == "" {
		return ErrNoJSON
	}

	err := json.Unmarshal([]byte(body), v)
	if err == nil {
		return nil
	}

	start := strings.IndexAny(body, "[{")
	if start == -1 {
		return ErrNoJSON
	}
	closing := "]"
	if body[start] == '{' {
		closing = "}"
	}
	end := strings.LastIndex(body, closing)
	if end < start {
		return &ParseError{Text: text, Err: err}
	}

	if err := json.Unmarshal([]byte(body[start:end+1]), v); err != nil {
		return &ParseError{Text: text, Err: err}
	}
	return nil
}
