// Package menu loads and validates a tenant's catalog of pizzas and drinks.
package menu

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog file names, in lookup order.
const (
	JSONFile = "menu.json"
	YAMLFile = "menu.yaml"
)

// ErrNotFound is returned by Load when a tenant directory has no catalog file.
var ErrNotFound = errors.New("menu: catalog not found")

// Category distinguishes the two sub-catalogs.
type Category string

const (
	CategoryPizza Category = "pizza"
	CategoryDrink Category = "drink"
)

// Format selects the decoder used by Parse.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Item is one orderable product. Ids are unique across the whole catalog.
type Item struct {
	ID          int      `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Price       float64  `json:"price" yaml:"price"`
	Category    Category `json:"category,omitempty" yaml:"category,omitempty"`
	Ingredients string   `json:"ingredients,omitempty" yaml:"ingredients,omitempty"`
}

// Catalog is a tenant's immutable menu.
type Catalog struct {
	Pizzas []Item `json:"pizzas" yaml:"pizzas"`
	Drinks []Item `json:"bebidas" yaml:"bebidas"`
}

// ValidationError lists every problem found in a catalog.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("menu: validation failed: %s", strings.Join(e.Problems, "; "))
}

// Load reads the catalog from dir, preferring menu.json and falling back to
// menu.yaml.
func Load(dir string) (*Catalog, error) {
	candidates := []struct {
		name   string
		format Format
	}{
		{JSONFile, FormatJSON},
		{YAMLFile, FormatYAML},
	}
	for _, c := range candidates {
		path := filepath.Join(dir, c.name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("menu: read %s: %w", path, err)
		}
		cat, err := Parse(data, c.format)
		if err != nil {
			return nil, fmt.Errorf("menu: %s: %w", path, err)
		}
		return cat, nil
	}
	return nil, fmt.Errorf("%w in %s", ErrNotFound, dir)
}

// Parse decodes catalog bytes in the given format and validates them.
// Categories are assigned from the sub-catalog an item appears in.
func Parse(data []byte, format Format) (*Catalog, error) {
	var cat Catalog
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("menu: parse json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return nil, fmt.Errorf("menu: parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("menu: format %q is not supported", format)
	}

	for i := range cat.Pizzas {
		cat.Pizzas[i].Category = CategoryPizza
		cat.Pizzas[i].Name = strings.TrimSpace(cat.Pizzas[i].Name)
	}
	for i := range cat.Drinks {
		cat.Drinks[i].Category = CategoryDrink
		cat.Drinks[i].Name = strings.TrimSpace(cat.Drinks[i].Name)
	}

	if err := cat.validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	var problems []string
	seen := make(map[int]Category)
	for _, it := range c.Items() {
		label := fmt.Sprintf("%s %d", it.Category, it.ID)
		if it.ID <= 0 {
			problems = append(problems, fmt.Sprintf("%s %q: id must be positive", it.Category, it.Name))
		} else if prev, dup := seen[it.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s: id already used by a %s", label, prev))
		} else {
			seen[it.ID] = it.Category
		}
		if it.Name == "" {
			problems = append(problems, fmt.Sprintf("%s: name is required", label))
		}
		if math.IsNaN(it.Price) || math.IsInf(it.Price, 0) {
			problems = append(problems, fmt.Sprintf("%s: price must be a finite number", label))
		} else if it.Price < 0 {
			problems = append(problems, fmt.Sprintf("%s: price must not be negative", label))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Items returns pizzas followed by drinks.
func (c *Catalog) Items() []Item {
	items := make([]Item, 0, c.Len())
	items = append(items, c.Pizzas...)
	return append(items, c.Drinks...)
}

// Find resolves an id against the whole catalog.
func (c *Catalog) Find(id int) (Item, bool) {
	for _, it := range c.Pizzas {
		if it.ID == id {
			return it, true
		}
	}
	for _, it := range c.Drinks {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Len returns the number of items in the catalog.
func (c *Catalog) Len() int {
	return len(c.Pizzas) + len(c.Drinks)
}
