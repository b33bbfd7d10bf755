// Package categories maps Eventbrite category and subcategory ids to the
// catalogue's filter tags.
package categories

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mymemorymaker/event-ingest/internal/domain"
)

//go:embed eventbrite.yaml
var eventbriteTable []byte

// Subcategory is one Eventbrite subcategory and the tags it contributes.
type Subcategory struct {
	ID   string   `yaml:"id"`
	Name string   `yaml:"name"`
	Tags []string `yaml:"tags"`
}

// Category is one top-level Eventbrite category.
type Category struct {
	ID            string        `yaml:"id"`
	Name          string        `yaml:"name"`
	Tags          []string      `yaml:"tags"`
	Subcategories []Subcategory `yaml:"subcategories"`
}

// Table is the full mapping document.
type Table struct {
	Categories []Category `yaml:"categories"`
}

// Mapper resolves category ids to tags. It is read-only after construction
// and safe for concurrent use.
type Mapper struct {
	byCategory    map[string]Category
	bySubcategory map[string]Subcategory
	subParent     map[string]string
}

// Default returns the mapper built from the embedded Eventbrite table.
func Default() *Mapper {
	m, err := Parse(eventbriteTable)
	if err != nil {
		panic(fmt.Sprintf("categories: embedded table: %v", err))
	}
	return m
}

// Parse builds a mapper from a YAML table.
func Parse(data []byte) (*Mapper, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}
	return New(t)
}

// New indexes a table. Duplicate category or subcategory ids are rejected.
func New(t Table) (*Mapper, error) {
	m := &Mapper{
		byCategory:    make(map[string]Category, len(t.Categories)),
		bySubcategory: make(map[string]Subcategory),
		subParent:     make(map[string]string),
	}
	for _, c := range t.Categories {
		if _, dup := m.byCategory[c.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %q", c.ID)
		}
		m.byCategory[c.ID] = c
		for _, s := range c.Subcategories {
			if _, dup := m.bySubcategory[s.ID]; dup {
				return nil, fmt.Errorf("duplicate subcategory id %q", s.ID)
			}
			m.bySubcategory[s.ID] = s
			m.subParent[s.ID] = c.ID
		}
	}
	return m, nil
}

// Tags returns the union of the category's tags and, when the subcategory
// belongs to it, the subcategory's tags. Subcategories only resolve inside a
// matched category. Unknown ids contribute nothing.
func (m *Mapper) Tags(categoryID, subcategoryID string) domain.Tags {
	out := domain.Tags{}
	c, ok := m.byCategory[categoryID]
	if !ok {
		return out
	}
	out.Merge(domain.NewTags(c.Tags...))
	if s, ok := m.bySubcategory[subcategoryID]; ok && m.subParent[subcategoryID] == categoryID {
		out.Merge(domain.NewTags(s.Tags...))
	}
	return out
}

// Len returns the number of categories in the table.
func (m *Mapper) Len() int { return len(m.byCategory) }
