package collection

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/hitbox/packages/core/template"
	"gopkg.in/yaml.v3"
)

var (
	ErrRecipeNotFound  = errors.New("recipe not found")
	ErrProfileNotFound = errors.New("profile not found")
)

// Filenames are searched, in order, when no collection path is given.
var Filenames = []string{
	"hitbox.yml",
	"hitbox.yaml",
	".hitbox.yml",
	".hitbox.yaml",
}

type Collection struct {
	Path     string
	Profiles []Profile
	Recipes  []Recipe
}

// Find returns the first collection file in dir.
func Find(dir string) (string, error) {
	for _, name := range Filenames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no collection file found in %s (looked for %v)", dir, Filenames)
}

// Load reads, validates and parses a collection file.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read collection: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// Parse decodes collection YAML, keeping the file's key order.
func Parse(data []byte) (*Collection, error) {
	var raw struct {
		Profiles yaml.Node `yaml:"profiles"`
		Recipes  yaml.Node `yaml:"recipes"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid collection YAML: %w", err)
	}

	c := &Collection{}
	err := eachEntry(&raw.Profiles, func(key string, node *yaml.Node) error {
		var p Profile
		if err := node.Decode(&p); err != nil {
			return err
		}
		p.ID = ProfileID(key)
		c.Profiles = append(c.Profiles, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}

	err = eachEntry(&raw.Recipes, func(key string, node *yaml.Node) error {
		var r Recipe
		if err := node.Decode(&r); err != nil {
			return err
		}
		r.ID = RecipeID(key)
		if err := r.validate(); err != nil {
			return err
		}
		c.Recipes = append(c.Recipes, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recipes: %w", err)
	}

	return c, nil
}

func eachEntry(node *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if seen[key] {
			return fmt.Errorf("line %d: duplicate id %q", node.Content[i].Line, key)
		}
		seen[key] = true
		if err := fn(key, node.Content[i+1]); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func (c *Collection) Recipe(id RecipeID) (*Recipe, error) {
	for i := range c.Recipes {
		if c.Recipes[i].ID == id {
			return &c.Recipes[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, id)
}

func (c *Collection) Profile(id ProfileID) (*Profile, error) {
	for i := range c.Profiles {
		if c.Profiles[i].ID == id {
			return &c.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
}

// DefaultProfile returns the profile marked default, else the first one, else nil.
func (c *Collection) DefaultProfile() *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].Default {
			return &c.Profiles[i]
		}
	}
	if len(c.Profiles) > 0 {
		return &c.Profiles[0]
	}
	return nil
}

// TemplateContext builds a render context for the given profile. An empty id
// selects the default profile; a collection without profiles renders with no
// profile selected.
func (c *Collection) TemplateContext(id ProfileID, overrides map[string]string) (*template.Context, error) {
	var profile *Profile
	if id != "" {
		p, err := c.Profile(id)
		if err != nil {
			return nil, err
		}
		profile = p
	} else {
		profile = c.DefaultProfile()
	}

	ctx := template.NewContext("", nil)
	if profile != nil {
		ctx.ProfileID = string(profile.ID)
		ctx.Profile = profile.Data
	}
	ctx.Overrides = overrides
	return ctx, nil
}
