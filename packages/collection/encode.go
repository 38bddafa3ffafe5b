package collection

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML encodes params as a mapping in declared order. Values are
// tagged as strings so numeric-looking templates survive a round trip.
func (p Params) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, param := range p {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: param.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(param.Value)},
		)
	}
	return node, nil
}

// Marshal encodes a collection as YAML, keeping profile and recipe order.
func Marshal(c *Collection) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}

	if len(c.Profiles) > 0 {
		profiles := &yaml.Node{Kind: yaml.MappingNode}
		for i := range c.Profiles {
			if err := appendEntry(profiles, string(c.Profiles[i].ID), &c.Profiles[i]); err != nil {
				return nil, fmt.Errorf("profile %s: %w", c.Profiles[i].ID, err)
			}
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "profiles"}, profiles)
	}

	if len(c.Recipes) > 0 {
		recipes := &yaml.Node{Kind: yaml.MappingNode}
		for i := range c.Recipes {
			if err := appendEntry(recipes, string(c.Recipes[i].ID), &c.Recipes[i]); err != nil {
				return nil, fmt.Errorf("recipe %s: %w", c.Recipes[i].ID, err)
			}
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "recipes"}, recipes)
	}

	return yaml.Marshal(doc)
}

func appendEntry(mapping *yaml.Node, key string, v any) error {
	var value yaml.Node
	if err := value.Encode(v); err != nil {
		return err
	}
	mapping.Content = append(mapping.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &value)
	return nil
}
