// Package grouping decodes and validates the structured grouping answer
// returned by the matchmaker service.
package grouping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonrepair"

	"workshop-matchmaker/agent"
)

var (
	// ErrEmptyResponse indicates the service returned no events.
	ErrEmptyResponse = errors.New("grouping: empty response")
	// ErrMalformedResponse indicates the final event is missing the expected
	// nested fields or its payload is not JSON.
	ErrMalformedResponse = errors.New("grouping: malformed response")
)

// SchemaError indicates the payload is valid JSON but does not match the
// groups schema. Field names the first offending field.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("grouping: schema validation failed at field %q", e.Field)
}

// StudentGroup is one group of attendees with the model's rationale.
type StudentGroup struct {
	Group       []string `json:"group"`
	Description string   `json:"description"`
}

// GroupingResult is the decoded final answer.
type GroupingResult struct {
	Groups []StudentGroup `json:"groups"`
}

// Option adjusts decoding behavior.
type Option func(*decoder)

type decoder struct {
	repair bool
}

// WithRepair enables repair of JSON syntax errors in the payload before
// decoding. Shape validation stays strict; repair is never applied silently
// without this option.
func WithRepair() Option {
	return func(d *decoder) { d.repair = true }
}

// Decode extracts the structured grouping from the turn's events: the last
// event's first text part is parsed as JSON and checked against the groups
// schema. The decoder performs no semantic validation of the grouping itself;
// see ValidateAssignment.
func Decode(events []agent.Event, opts ...Option) (*GroupingResult, error) {
	var d decoder
	for _, opt := range opts {
		opt(&d)
	}

	if len(events) == 0 {
		return nil, ErrEmptyResponse
	}

	final := events[len(events)-1]
	if len(final.Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: final event has no content parts", ErrMalformedResponse)
	}
	text := final.Content.Parts[0].Text
	if text == "" {
		return nil, fmt.Errorf("%w: final event part has no text", ErrMalformedResponse)
	}

	payload, err := d.parse([]byte(text))
	if err != nil {
		return nil, err
	}
	return validateShape(payload)
}

// parse unmarshals the payload into the top-level object, repairing syntax
// errors first when enabled.
func (d *decoder) parse(data []byte) (map[string]json.RawMessage, error) {
	var payload map[string]json.RawMessage
	err := json.Unmarshal(data, &payload)
	if err == nil {
		return payload, nil
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		if !d.repair {
			return nil, fmt.Errorf("%w: payload is not valid JSON: %v", ErrMalformedResponse, err)
		}
		fixed, repairErr := jsonrepair.JSONRepair(string(data))
		if repairErr != nil {
			return nil, fmt.Errorf("%w: payload is not repairable JSON: %v", ErrMalformedResponse, repairErr)
		}
		if err := json.Unmarshal([]byte(fixed), &payload); err != nil {
			return nil, fmt.Errorf("%w: repaired payload is not valid JSON: %v", ErrMalformedResponse, err)
		}
		return payload, nil
	}

	// Valid JSON that is not an object cannot carry the groups key.
	return nil, &SchemaError{Field: "groups"}
}

// isNull reports whether a raw value is the JSON null literal, which
// json.Unmarshal would otherwise leave as a silent no-op.
func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// validateShape checks the declared schema: a groups key holding a sequence
// of objects, each with a group string sequence and a description string.
// JSON null never satisfies a field.
func validateShape(payload map[string]json.RawMessage) (*GroupingResult, error) {
	rawGroups, ok := payload["groups"]
	if !ok || isNull(rawGroups) {
		return nil, &SchemaError{Field: "groups"}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(rawGroups, &elements); err != nil {
		return nil, &SchemaError{Field: "groups"}
	}

	result := &GroupingResult{Groups: make([]StudentGroup, 0, len(elements))}
	for i, raw := range elements {
		if isNull(raw) {
			return nil, &SchemaError{Field: fmt.Sprintf("groups[%d]", i)}
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, &SchemaError{Field: fmt.Sprintf("groups[%d]", i)}
		}

		rawMembers, ok := fields["group"]
		if !ok || isNull(rawMembers) {
			return nil, &SchemaError{Field: fmt.Sprintf("groups[%d].group", i)}
		}
		var rawMemberList []json.RawMessage
		if err := json.Unmarshal(rawMembers, &rawMemberList); err != nil {
			return nil, &SchemaError{Field: fmt.Sprintf("groups[%d].group", i)}
		}
		members := make([]string, len(rawMemberList))
		for j, rawMember := range rawMemberList {
			if isNull(rawMember) {
				return nil, &SchemaError{Field: fmt.Sprintf("groups[%d].group[%d]", i, j)}
			}
			if err := json.Unmarshal(rawMember, &members[j]); err != nil {
				return nil, &SchemaError{Field: fmt.Sprintf("groups[%d].group[%d]", i, j)}
			}
		}

		rawDescription, ok := fields["description"]
		if !ok || isNull(rawDescription) {
			return nil, &SchemaError{Field: fmt.Sprintf("groups[%d].description", i)}
		}
		var description string
		if err := json.Unmarshal(rawDescription, &description); err != nil {
			return nil, &SchemaError{Field: fmt.Sprintf("groups[%d].description", i)}
		}

		result.Groups = append(result.Groups, StudentGroup{
			Group:       members,
			Description: description,
		})
	}

	return result, nil
}
