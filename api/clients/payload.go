package clients

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruteri/be-registry/interfaces"
	"gopkg.in/yaml.v3"
)

// LoadEntityPayload reads an entity payload from a JSON or YAML file. YAML is
// recognized by the .yaml or .yml extension and uses the same field names as
// the JSON encoding.
func LoadEntityPayload(path string) (interfaces.BusinessEntity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return interfaces.BusinessEntity{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLPayload(raw)
	default:
		return ParseJSONPayload(raw)
	}
}

func ParseJSONPayload(raw []byte) (interfaces.BusinessEntity, error) {
	var entity interfaces.BusinessEntity
	if err := json.Unmarshal(raw, &entity); err != nil {
		return interfaces.BusinessEntity{}, fmt.Errorf("invalid JSON payload: %w", err)
	}
	return entity, nil
}

// ParseYAMLPayload converts a YAML document to its JSON equivalent and decodes
// that, so both formats share the entity's JSON field mapping.
func ParseYAMLPayload(raw []byte) (interfaces.BusinessEntity, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return interfaces.BusinessEntity{}, fmt.Errorf("invalid YAML payload: %w", err)
	}

	value, err := yamlNodeValue(&doc)
	if err != nil {
		return interfaces.BusinessEntity{}, fmt.Errorf("invalid YAML payload: %w", err)
	}
	asJSON, err := json.Marshal(value)
	if err != nil {
		return interfaces.BusinessEntity{}, err
	}
	return ParseJSONPayload(asJSON)
}

func yamlNodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return yamlNodeValue(node.Content[0])
	case yaml.AliasNode:
		return yamlNodeValue(node.Alias)
	case yaml.SequenceNode:
		res := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := yamlNodeValue(item)
			if err != nil {
				return nil, err
			}
			res = append(res, v)
		}
		return res, nil
	case yaml.MappingNode:
		res := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			v, err := yamlNodeValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			res[key.Value] = v
		}
		return res, nil
	case yaml.ScalarNode:
		return yamlScalarValue(node)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", node.Line)
	}
}

func yamlScalarValue(node *yaml.Node) (any, error) {
	switch node.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		err := node.Decode(&b)
		return b, err
	case "!!int":
		// unquoted hex addresses resolve as integers
		if strings.HasPrefix(strings.ToLower(node.Value), "0x") {
			return node.Value, nil
		}
		var i int64
		err := node.Decode(&i)
		return i, err
	case "!!float":
		var f float64
		err := node.Decode(&f)
		return f, err
	default:
		return node.Value, nil
	}
}
