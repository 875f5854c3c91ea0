package scene

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/nede-neuro/go-nede/pkg/geom"
)

// Catalog is an in-memory AssetStore.
type Catalog struct {
	mu     sync.RWMutex
	assets map[string][]Asset
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{assets: make(map[string][]Asset)}
}

// Add registers an asset under its category.
func (c *Catalog) Add(a Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[a.Category] = append(c.assets[a.Category], a)
}

// Lookup implements AssetStore.
func (c *Catalog) Lookup(category, name string) (Asset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.assets[category] {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

// List implements AssetStore.
func (c *Catalog) List(category string) []Asset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Asset(nil), c.assets[category]...)
}

// Categories returns the category names in sorted order.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.assets))
	for n := range c.assets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve finds name in the first of categories that holds it.
func Resolve(store AssetStore, categories []string, name string) (Asset, bool) {
	for _, cat := range categories {
		if a, ok := store.Lookup(cat, name); ok {
			return a, true
		}
	}
	return Asset{}, false
}

type catalogFile struct {
	Categories map[string][]struct {
		Name  string     `yaml:"name"`
		Image bool       `yaml:"image"`
		Size  [3]float64 `yaml:"size"`
	} `yaml:"categories"`
}

// ParseCatalog decodes a YAML asset list:
//
//	categories:
//	  cars:
//	    - name: sedan
//	      size: [4.2, 1.4, 1.8]
//	  faces:
//	    - name: face01
//	      image: true
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := NewCatalog()
	for cat, items := range f.Categories {
		for _, it := range items {
			a := Asset{Category: cat, Name: it.Name, Size: geom.V3(it.Size[0], it.Size[1], it.Size[2])}
			if it.Image {
				a.Kind = Image
			}
			c.Add(a)
		}
	}
	return c, nil
}

// LoadCatalog reads a YAML asset list from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}
