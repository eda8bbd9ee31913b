// Package mgmt expands management dictionaries into APSIM operation schedules.
package mgmt

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Value is one management dictionary value. Raw keeps the literal text so
// actions render numbers exactly as the plan wrote them.
type Value struct {
	Raw  string
	Null bool
}

// String returns the literal text of the value.
func (v Value) String() string {
	if v.Null {
		return "None"
	}
	return v.Raw
}

// Float parses the value as a number.
func (v Value) Float() (float64, bool) {
	if v.Null {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Entry is a key/value pair of a Dict.
type Entry struct {
	Key   string
	Value Value
}

// Dict is an ordered management dictionary. Key order follows the source
// document because operation rows are zipped positionally.
type Dict struct {
	Entries []Entry
}

// NewDict builds a Dict from alternating key/value strings. A value of
// "null" is treated as missing. Mostly useful in tests and for tasks built
// from database rows.
func NewDict(kv ...string) *Dict {
	d := &Dict{}
	for i := 0; i+1 < len(kv); i += 2 {
		d.Set(kv[i], Value{Raw: kv[i+1], Null: kv[i+1] == "null"})
	}
	return d
}

// Set appends or replaces a key, preserving its original position.
func (d *Dict) Set(key string, v Value) {
	for i := range d.Entries {
		if d.Entries[i].Key == key {
			d.Entries[i].Value = v
			return
		}
	}
	d.Entries = append(d.Entries, Entry{Key: key, Value: v})
}

// Get returns the value stored under an exact key.
func (d *Dict) Get(key string) (Value, bool) {
	for _, e := range d.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// MatchMode selects how a field name is matched against dictionary keys.
type MatchMode int

const (
	// MatchPrefix matches the key itself or keys extending it with "_<suffix>".
	MatchPrefix MatchMode = iota
	// MatchSubstring matches any key containing the field name.
	MatchSubstring
)

// ParseMatchMode maps a config string to a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prefix":
		return MatchPrefix, nil
	case "substring":
		return MatchSubstring, nil
	}
	return MatchPrefix, eris.Errorf("mgmt: unknown key match mode %q", s)
}

func (m MatchMode) matches(key, field string) bool {
	if m == MatchSubstring {
		return strings.Contains(key, field)
	}
	return key == field || strings.HasPrefix(key, field+"_")
}

// Values returns every value whose key matches field, in dictionary order.
func (d *Dict) Values(field string, mode MatchMode) []Value {
	if d == nil || field == "" {
		return nil
	}
	var out []Value
	for _, e := range d.Entries {
		if mode.matches(e.Key, field) {
			out = append(out, e.Value)
		}
	}
	return out
}

// LoadDict reads a management dictionary from a JSON or YAML file.
func LoadDict(path string) (*Dict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mgmt: read %s", path)
	}
	d, err := DecodeDict(data)
	if err != nil {
		return nil, eris.Wrapf(err, "mgmt: decode %s", path)
	}
	return d, nil
}

// DecodeDict parses a flat JSON object or YAML mapping, keeping key order.
func DecodeDict(data []byte) (*Dict, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, eris.New("mgmt: empty management document")
	}
	if trimmed[0] == '{' {
		return decodeJSON(trimmed)
	}
	return decodeYAML(trimmed)
}

func decodeJSON(data []byte) (*Dict, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "mgmt: json open")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, eris.New("mgmt: json document is not an object")
	}

	d := &Dict{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "mgmt: json key")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, eris.Errorf("mgmt: unexpected json key %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, eris.Wrapf(err, "mgmt: json value for %s", key)
		}
		switch v := tok.(type) {
		case nil:
			d.Set(key, Value{Null: true})
		case string:
			d.Set(key, Value{Raw: v})
		case json.Number:
			d.Set(key, Value{Raw: v.String()})
		case bool:
			d.Set(key, Value{Raw: strconv.FormatBool(v)})
		default:
			return nil, eris.Errorf("mgmt: key %s holds a nested value", key)
		}
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "mgmt: json close")
	}
	return d, nil
}

func decodeYAML(data []byte) (*Dict, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "mgmt: yaml")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, eris.New("mgmt: yaml document is not a mapping")
	}

	m := doc.Content[0]
	d := &Dict{}
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, eris.Errorf("mgmt: key %s holds a nested value", k.Value)
		}
		d.Set(k.Value, Value{Raw: v.Value, Null: v.Tag == "!!null"})
	}
	return d, nil
}
