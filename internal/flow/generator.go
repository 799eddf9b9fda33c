package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"recipesnap/internal/photo"
	"recipesnap/internal/schema"
)

// Request is a single structured-output completion request.
type Request struct {
	// Name identifies the flow in logs.
	Name   string
	Prompt string
	// Media is an optional image sent alongside the prompt.
	Media  *photo.Photo
	Schema *schema.Schema
}

// Generator submits a prompt to a generative model and returns its JSON response. Implementations
// should ask the model for output matching req.Schema; callers still validate what comes back.
type Generator interface {
	Generate(ctx context.Context, req Request) (json.RawMessage, error)
}

// ErrNoJSONObject is returned when a model reply contains no JSON object at all.
var ErrNoJSONObject = errors.New("could not find JSON object in model response")

// ExtractJSONObject returns the outermost {...} span of a model reply. Models sometimes wrap JSON in
// markdown fences or prose even in JSON mode.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || start > end {
		return nil, fmt.Errorf("%w: %s", ErrNoJSONObject, text)
	}
	return json.RawMessage(text[start : end+1]), nil
}
