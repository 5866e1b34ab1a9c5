package converter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/dashbridge/internal/models"
)

// ToNDJSON renders d as a single import line for the Kibana saved objects
// API. The embedded JSON strings are re-parsed and re-encoded so each is
// valid JSON, and an empty id is dropped. d is not modified.
func ToNDJSON(d *models.KibanaDashboard) (string, error) {
	if d == nil {
		return "", fmt.Errorf("dashboard is required")
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode dashboard: %w", err)
	}
	doc, err := decodeJSONObject(raw)
	if err != nil {
		return "", fmt.Errorf("copy dashboard: %w", err)
	}

	if attrs, ok := doc["attributes"].(map[string]interface{}); ok {
		for _, key := range []string{"panelsJSON", "optionsJSON"} {
			if err := normalizeEmbedded(attrs, key); err != nil {
				return "", err
			}
		}
		if meta, ok := attrs["kibanaSavedObjectMeta"].(map[string]interface{}); ok {
			if err := normalizeEmbedded(meta, "searchSourceJSON"); err != nil {
				return "", err
			}
		}
	}

	if id, ok := doc["id"]; !ok || id == nil || id == "" {
		delete(doc, "id")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encode ndjson line: %w", err)
	}
	return buf.String(), nil
}

// normalizeEmbedded rewrites m[key] as compact JSON text. Values that are
// not strict JSON get a second chance through a permissive literal parser
// that accepts single quotes and True/False/None.
func normalizeEmbedded(m map[string]interface{}, key string) error {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}

	var parsed interface{}
	switch s := v.(type) {
	case string:
		var err error
		parsed, err = parseEmbedded(s)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", key, err)
		}
	default:
		parsed = s
	}

	out, err := marshalString(parsed)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", key, err)
	}
	m[key] = out
	return nil
}

func parseEmbedded(s string) (interface{}, error) {
	var v interface{}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	jsonErr := dec.Decode(&v)
	if jsonErr == nil {
		return v, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		return nil, fmt.Errorf("not JSON (%v) and not a literal: %w", jsonErr, err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode && root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("not JSON: %w", jsonErr)
	}
	return fromLiteral(root)
}

// fromLiteral maps the permissive parse tree onto JSON-compatible values.
// Only an unquoted None becomes null; a quoted 'None' stays a string.
func fromLiteral(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromLiteral(n.Content[0])
	case yaml.AliasNode:
		return fromLiteral(n.Alias)
	case yaml.MappingNode:
		out := make(map[string]interface{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, err := fromLiteral(n.Content[i])
			if err != nil {
				return nil, err
			}
			v, err := fromLiteral(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			if k == nil {
				out["null"] = v
				continue
			}
			out[fmt.Sprint(k)] = v
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromLiteral(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		if n.Value == "None" && n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) == 0 {
			return nil, nil
		}
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

func decodeJSONObject(b []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
