// Package dataset loads the JSON or YAML input files consumed by the
// analysis tools. The format is chosen by file extension.
package dataset

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format is an input encoding.
type Format string

const (
	// JSON input, the default for unknown extensions.
	JSON Format = "json"
	// YAML input (.yaml, .yml).
	YAML Format = "yaml"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// Decode reads path and decodes the whole document into v.
func Decode(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	if err := unmarshal(FormatOf(path), data, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}

func unmarshal(f Format, data []byte, v interface{}) error {
	if f == YAML {
		return yaml.Unmarshal(data, v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}

// LoadList reads the list stored under key from a document shaped like
// {"<key>": [...]}. A document that is itself a list is accepted as well.
func LoadList[T any](path, key string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	format := FormatOf(path)

	var items []T
	if format == YAML {
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", path)
		}
		node := &root
		if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
			node = node.Content[0]
		}
		if node.Kind == yaml.MappingNode {
			node = mappingValue(node, key)
			if node == nil {
				return nil, errors.Errorf("%s has no %q list", path, key)
			}
		}
		if err := node.Decode(&items); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %q in %s", key, path)
		}
		return items, nil
	}

	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", path)
		}
		return items, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	raw, ok := doc[key]
	if !ok {
		return nil, errors.Errorf("%s has no %q list", path, key)
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %q in %s", key, path)
	}
	return items, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
