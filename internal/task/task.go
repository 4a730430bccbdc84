// Package task loads and validates task definitions: the fixed input/output
// schema and prompt template that drive one enrichment run.
package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Placeholders expanded once at load time with static JSON renderings of the
// task's inputs and outputs. Per-note [[Field]] placeholders are left intact
// for the inference client to render.
const (
	inputsPlaceholder  = "{{inputs_json}}"
	outputsPlaceholder = "{{outputs_json}}"
)

// Task defines one enrichment task: which deck to process, which note fields
// feed the prompt, and which output fields the model must produce.
type Task struct {
	Name     string     `yaml:"name"`
	Deck     string     `yaml:"deck"`
	RefField string     `yaml:"ref_field"`
	Model    string     `yaml:"model,omitempty"` // overrides llm.default_model when set
	Inputs   OrderedMap `yaml:"inputs"`
	Outputs  OrderedMap `yaml:"outputs"`
	Template string     `yaml:"template"`
}

// OrderedMap is a string-to-string mapping that preserves YAML document order.
// Order matters only for rendering the JSON embeds; lookup is by key.
type OrderedMap struct {
	keys   []string
	values map[string]string
}

// UnmarshalYAML decodes a YAML mapping node, keeping key order.
func (m *OrderedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got %s", node.Tag)
	}

	m.keys = nil
	m.values = make(map[string]string, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		var key, value string
		if err := node.Content[i].Decode(&key); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&value); err != nil {
			return err
		}
		if _, dup := m.values[key]; dup {
			return fmt.Errorf("duplicate key %q", key)
		}
		m.keys = append(m.keys, key)
		m.values[key] = value
	}
	return nil
}

// MarshalYAML emits the mapping in declaration order.
func (m OrderedMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: m.values[k]},
		)
	}
	return node, nil
}

// Set appends or replaces a key.
func (m *OrderedMap) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key.
func (m OrderedMap) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in declaration order.
func (m OrderedMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of entries.
func (m OrderedMap) Len() int {
	return len(m.keys)
}

// JSON renders the mapping as indent-2 JSON, keys in declaration order.
func (m OrderedMap) JSON() string {
	if m.Len() == 0 {
		return "{}"
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, k := range m.keys {
		kj, _ := json.Marshal(k)
		vj, _ := json.Marshal(m.values[k])
		buf.WriteString("  ")
		buf.Write(kj)
		buf.WriteString(": ")
		buf.Write(vj)
		if i < len(m.keys)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.String()
}

// Load reads and validates a task definition from a YAML file, expanding the
// static JSON embeds in the template.
func Load(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a task definition from YAML bytes.
func Parse(data []byte) (*Task, error) {
	var t Task
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse task definition: %w", err)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	t.Template = strings.ReplaceAll(t.Template, inputsPlaceholder, t.Inputs.JSON())
	t.Template = strings.ReplaceAll(t.Template, outputsPlaceholder, t.Outputs.JSON())

	return &t, nil
}

// Validate checks that all required task fields are present.
func (t *Task) Validate() error {
	var missing []string
	if t.Name == "" {
		missing = append(missing, "name")
	}
	if t.Deck == "" {
		missing = append(missing, "deck")
	}
	if t.RefField == "" {
		missing = append(missing, "ref_field")
	}
	if t.Template == "" {
		missing = append(missing, "template")
	}
	if t.Inputs.Len() == 0 {
		missing = append(missing, "inputs")
	}
	if t.Outputs.Len() == 0 {
		missing = append(missing, "outputs")
	}
	if len(missing) > 0 {
		return fmt.Errorf("task definition is missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// OutputKeys returns the expected output schema: the fixed set of field names
// every model response must contain.
func (t *Task) OutputKeys() []string {
	return t.Outputs.Keys()
}
