// Package schema validates a model's structured result against the task's
// expected output schema and filters it down to writable note fields.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks structured results against a fixed set of required output
// keys, each of which must hold a scalar value.
type Validator struct {
	keys     []string
	compiled *jsonschema.Schema
}

// scalarTypes are the JSON value kinds accepted for write-back. Everything
// is coerced to text before it reaches Anki.
var scalarTypes = []string{"string", "integer", "number", "boolean"}

// New builds a Validator for the given expected output keys. The keys are the
// task's output schema, fixed for the run.
func New(keys []string) (*Validator, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("expected output schema is empty")
	}

	properties := make(map[string]any, len(keys))
	for _, k := range keys {
		properties[k] = map[string]any{"type": scalarTypes}
	}
	doc, err := json.Marshal(map[string]any{
		"type":       "object",
		"required":   keys,
		"properties": properties,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize output schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("outputs.json", bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("failed to load output schema: %w", err)
	}
	compiled, err := compiler.Compile("outputs.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile output schema: %w", err)
	}

	return &Validator{keys: append([]string(nil), keys...), compiled: compiled}, nil
}

// Checked is the outcome of validating one structured result.
type Checked struct {
	// Fields holds the expected keys that carried scalar values, coerced to
	// strings for write-back.
	Fields map[string]string

	// Missing lists expected keys absent from the result or filtered out for
	// having a non-scalar value.
	Missing []string
}

// Usable reports whether the result can be committed: nothing missing and at
// least one field to write. Partial results are never written.
func (c *Checked) Usable() bool {
	return len(c.Missing) == 0 && len(c.Fields) > 0
}

// Check validates and filters a structured result. The compiled schema
// decides which expected keys are unusable (absent, or holding a non-scalar
// value); keys it accepts are coerced to text. Keys outside the expected
// schema are dropped silently.
func (v *Validator) Check(result map[string]any) *Checked {
	checked := &Checked{Fields: make(map[string]string, len(v.keys))}

	failed := map[string]bool{}
	if err := v.compiled.Validate(result); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			// Not a validation verdict; treat the whole result as unusable.
			checked.Missing = append(checked.Missing, v.keys...)
			return checked
		}
		failed = v.failedKeys(verr, result)
	}

	for _, key := range v.keys {
		if failed[key] {
			checked.Missing = append(checked.Missing, key)
			continue
		}
		text, ok := coerce(result[key])
		if !ok {
			checked.Missing = append(checked.Missing, key)
			continue
		}
		checked.Fields[key] = text
	}

	return checked
}

// failedKeys flattens a validation error into the set of expected keys it
// blames: leaves located at "/<key>" failed the per-property schema, and a
// failed required keyword names the keys absent from the result.
func (v *Validator) failedKeys(verr *jsonschema.ValidationError, result map[string]any) map[string]bool {
	failed := map[string]bool{}
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		for _, cause := range e.Causes {
			walk(cause)
		}
		if len(e.Causes) > 0 {
			return
		}
		if rest, ok := strings.CutPrefix(e.InstanceLocation, "/"); ok {
			key, _, _ := strings.Cut(rest, "/")
			// Undo JSON pointer escaping.
			key = strings.ReplaceAll(strings.ReplaceAll(key, "~1", "/"), "~0", "~")
			failed[key] = true
			return
		}
		if strings.HasSuffix(e.KeywordLocation, "/required") {
			for _, k := range v.keys {
				if _, ok := result[k]; !ok {
					failed[k] = true
				}
			}
		}
	}
	walk(verr)
	return failed
}

// coerce converts a schema-accepted scalar to its write-back text form.
func coerce(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}
