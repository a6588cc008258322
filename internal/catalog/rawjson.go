package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// rawObject is a JSON object with its key order preserved. encoding/json maps
// lose declaration order, and menu layout must follow the data files exactly,
// so raw catalog objects are walked token by token.
type rawObject struct {
	keys   []string
	values map[string]json.RawMessage
}

func (o *rawObject) get(key string) (json.RawMessage, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *rawObject) getString(key string) string {
	raw, ok := o.values[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (o *rawObject) getBool(key string) bool {
	raw, ok := o.values[key]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

// decodeObject decodes one JSON object keeping key order. Duplicate keys are
// an error: they would silently shadow catalog entries.
func decodeObject(data []byte) (*rawObject, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON object: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	obj := &rawObject{values: make(map[string]json.RawMessage)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}
		if _, exists := obj.values[key]; exists {
			return nil, fmt.Errorf("duplicate key %q", key)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to read value of %q: %w", key, err)
		}

		obj.keys = append(obj.keys, key)
		obj.values[key] = raw
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read object end: %w", err)
	}
	return obj, nil
}
