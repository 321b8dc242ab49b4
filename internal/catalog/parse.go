package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// knownFields lists the top-level keys accepted per kind.
var knownFields = map[string]map[string]bool{
	core.KindMetric:  yamlKeys(reflect.TypeOf(core.SemanticMetric{})),
	core.KindVariant: yamlKeys(reflect.TypeOf(core.SemanticMetricVariant{})),
}

// yamlKeys collects the yaml names of a struct's fields plus "kind".
func yamlKeys(t reflect.Type) map[string]bool {
	keys := map[string]bool{"kind": true}
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("yaml")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = true
	}
	return keys
}

// Parse decodes every YAML document in data. Each document must declare
// kind: metric or kind: variant. Unknown top-level keys are rejected;
// use "meta" for custom fields.
func Parse(file string, data []byte) ([]*core.Definition, error) {
	var defs []*core.Definition

	// Two decoders walk the same documents: one checks the raw keys and the
	// other decodes strictly so nested typos keep their line numbers.
	rawDec := yaml.NewDecoder(bytes.NewReader(data))
	strictDec := yaml.NewDecoder(bytes.NewReader(data))
	strictDec.KnownFields(true)

	for {
		var node yaml.Node
		err := rawDec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{File: file, Message: fmt.Sprintf("invalid YAML: %v", err)}
		}

		kind, err := checkDocument(file, &node)
		if err != nil {
			return nil, err
		}

		def := &core.Definition{}
		if err := strictDec.Decode(def); err != nil {
			return nil, &ParseError{File: file, Line: node.Line, Message: fmt.Sprintf("failed to parse %s: %v", kind, err)}
		}
		if kind == "" {
			continue
		}
		if def.ID() == "" {
			return nil, &ParseError{File: file, Line: node.Line, Message: kind + " is missing an id"}
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// checkDocument validates kind and top-level keys. It returns an empty kind
// for empty documents.
func checkDocument(file string, node *yaml.Node) (string, error) {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return "", &ParseError{File: file, Line: node.Line, Message: fmt.Sprintf("document must be a mapping: %v", err)}
	}
	if len(raw) == 0 {
		return "", nil
	}

	kind, _ := raw["kind"].(string)
	known, ok := knownFields[kind]
	if !ok {
		return "", &ParseError{
			File:    file,
			Line:    node.Line,
			Message: fmt.Sprintf("invalid kind %q, must be one of: %s, %s", kind, core.KindMetric, core.KindVariant),
		}
	}

	fields := make([]string, 0, len(raw))
	for field := range raw {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if !known[field] {
			return "", &UnknownFieldError{File: file, Kind: kind, Field: field}
		}
	}
	return kind, nil
}

// ParseError represents a malformed catalog document.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an unrecognised top-level key.
type UnknownFieldError struct {
	File  string
	Kind  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in %s, use \"meta\" for custom fields", e.Field, e.Kind)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}

// DuplicateIDError is returned when two documents share an id.
type DuplicateIDError struct {
	ID     string
	First  string
	Second string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id %q defined in %s and %s", e.ID, e.First, e.Second)
}
