package analyses

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSON Schema for one extraction call's output. Compiled once at package init.
const extractionSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["policyInfo", "features"],
  "properties": {
    "policyInfo": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "insurer": {"type": "string"},
        "sumInsured": {"type": "string"},
        "policyType": {"type": "string"}
      }
    },
    "features": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "value"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "value": {"type": "string"},
          "quote": {"type": "string"},
          "reference": {"type": "string"}
        }
      }
    }
  }
}`

const classificationSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["classifications"],
  "properties": {
    "classifications": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "category"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "category": {"type": "string", "enum": ["GREAT", "GOOD", "RED_FLAG", "UNCLEAR"]},
          "explanation": {"type": "string"}
        }
      }
    }
  }
}`

var (
	extractionSchema     = mustCompileSchema("extraction.json", extractionSchemaJSON)
	classificationSchema = mustCompileSchema("classification.json", classificationSchemaJSON)
)

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// DecodeStatus tags how an LLM payload made it through decoding.
type DecodeStatus string

const (
	// DecodeSuccess: payload parsed and validated as-is.
	DecodeSuccess DecodeStatus = "success"
	// DecodePartial: payload only validated after truncation repair.
	DecodePartial DecodeStatus = "partial"
	// DecodeFailure: payload unusable even after repair.
	DecodeFailure DecodeStatus = "failure"
)

// ExtractionPayload is the parsed shape of one extraction call.
type ExtractionPayload struct {
	PolicyInfo PolicyInfo       `json:"policyInfo"`
	Features   []ExtractFeature `json:"features"`
}

// ExtractFeature is a feature as the model reports it, before classification.
type ExtractFeature struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	Quote     string `json:"quote"`
	Reference string `json:"reference"`
}

// ClassificationPayload is the parsed shape of a fallback classification call.
type ClassificationPayload struct {
	Classifications []Classification `json:"classifications"`
}

// Classification is one fallback category decision.
type Classification struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Explanation string `json:"explanation"`
}

// DecodeExtraction parses and schema-validates a raw extraction payload.
// Truncated output gets one brace/bracket-balancing repair pass; output that
// validates only after repair is tagged DecodePartial.
func DecodeExtraction(raw json.RawMessage) (ExtractionPayload, DecodeStatus, error) {
	var payload ExtractionPayload
	if err := validateAgainst(extractionSchema, raw); err == nil {
		if err := json.Unmarshal(raw, &payload); err == nil {
			return payload, DecodeSuccess, nil
		}
	}

	repaired, ok := balanceJSON(string(raw))
	if !ok {
		return ExtractionPayload{}, DecodeFailure, fmt.Errorf("extraction payload invalid: %s", truncateForLog(raw))
	}
	if err := validateAgainst(extractionSchema, []byte(repaired)); err != nil {
		return ExtractionPayload{}, DecodeFailure, fmt.Errorf("extraction payload invalid after repair: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
		return ExtractionPayload{}, DecodeFailure, fmt.Errorf("extraction payload unmarshal after repair: %w", err)
	}
	return payload, DecodePartial, nil
}

// DecodeClassification parses and schema-validates a raw classification payload.
func DecodeClassification(raw json.RawMessage) (ClassificationPayload, DecodeStatus, error) {
	var payload ClassificationPayload
	if err := validateAgainst(classificationSchema, raw); err == nil {
		if err := json.Unmarshal(raw, &payload); err == nil {
			return payload, DecodeSuccess, nil
		}
	}

	repaired, ok := balanceJSON(string(raw))
	if !ok {
		return ClassificationPayload{}, DecodeFailure, fmt.Errorf("classification payload invalid: %s", truncateForLog(raw))
	}
	if err := validateAgainst(classificationSchema, []byte(repaired)); err != nil {
		return ClassificationPayload{}, DecodeFailure, fmt.Errorf("classification payload invalid after repair: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
		return ClassificationPayload{}, DecodeFailure, fmt.Errorf("classification payload unmarshal after repair: %w", err)
	}
	return payload, DecodePartial, nil
}

func validateAgainst(schema *jsonschema.Schema, raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// balanceJSON repairs output truncated mid-stream: it drops a trailing
// partial token and closes any open strings, braces, and brackets. Returns
// false when the input does not even start like JSON.
func balanceJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return "", false
	}

	var stack []byte
	inString := false
	escaped := false
	lastComplete := 0 // index just past the last structurally complete token
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return "", false
			}
			open := stack[len(stack)-1]
			if (c == '}' && open != '{') || (c == ']' && open != '[') {
				return "", false
			}
			stack = stack[:len(stack)-1]
			lastComplete = i + 1
		}
	}

	if !inString && len(stack) == 0 {
		return s, true
	}

	// Cut back to the last complete value, then close what is still open.
	out := s
	if lastComplete > 0 && lastComplete < len(s) {
		out = s[:lastComplete]
		stack = rescanStack(out)
	} else if inString {
		out += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	if !json.Valid([]byte(out)) {
		return "", false
	}
	return out, true
}

// rescanStack recomputes the open-container stack for a prefix known to end
// outside any string.
func rescanStack(s string) []byte {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return stack
}

func truncateForLog(raw []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(raw))
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
