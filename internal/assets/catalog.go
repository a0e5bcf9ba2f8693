package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"reelsmith/internal/media"
)

// Category is one image directory and its selection weight.
type Category struct {
	Name   string   `yaml:"name"`
	Moods  []string `yaml:"moods"`
	Weight float64  `yaml:"weight"`
}

// Catalog describes the image pool.
type Catalog struct {
	Categories []Category `yaml:"categories"`
	// Moods maps a content mood to preferred categories.
	Moods map[string][]string `yaml:"moods"`
	// Regions holds subject hints keyed by path relative to images/.
	Regions map[string]media.Region `yaml:"regions"`
}

// DefaultCatalog is used when no catalog file exists.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Categories: []Category{
			{Name: "statues", Weight: 1},
			{Name: "warriors", Weight: 1},
			{Name: "nature", Weight: 1},
			{Name: "temples", Weight: 1},
			{Name: "sonder", Weight: 1},
		},
		Moods: map[string][]string{
			"contemplative": {"nature", "temples", "statues"},
			"powerful":      {"warriors", "statues"},
			"serene":        {"nature", "temples"},
			"determined":    {"warriors", "statues"},
			"calculated":    {"statues", "temples"},
			"cold":          {"statues", "sonder"},
			"dark":          {"sonder", "warriors"},
			"wise":          {"statues", "temples"},
		},
	}
}

// LoadCatalog reads a catalog file. A missing file yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultCatalog(), nil
		}
		return nil, fmt.Errorf("assets: read catalog %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("assets: parse catalog %s: %w", path, err)
	}
	if err := cat.validate(); err != nil {
		return nil, fmt.Errorf("assets: catalog %s: %w", path, err)
	}
	cat.normalize()
	return &cat, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]bool, len(c.Categories))
	for i, category := range c.Categories {
		name := strings.ToLower(strings.TrimSpace(category.Name))
		if name == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("categories[%d]: duplicate category %q", i, name)
		}
		seen[name] = true
		if category.Weight < 0 {
			return fmt.Errorf("categories[%d]: weight must be >= 0", i)
		}
	}
	for key, region := range c.Regions {
		if region.W <= 0 || region.H <= 0 || region.X < 0 || region.Y < 0 || region.X+region.W > 1 || region.Y+region.H > 1 {
			return fmt.Errorf("regions[%s]: region must lie within the unit square", key)
		}
	}
	return nil
}

func (c *Catalog) normalize() {
	moods := make(map[string][]string, len(c.Moods))
	for mood, cats := range c.Moods {
		key := strings.ToLower(strings.TrimSpace(mood))
		for _, name := range cats {
			moods[key] = append(moods[key], strings.ToLower(strings.TrimSpace(name)))
		}
	}
	for i := range c.Categories {
		c.Categories[i].Name = strings.ToLower(strings.TrimSpace(c.Categories[i].Name))
		if c.Categories[i].Weight == 0 {
			c.Categories[i].Weight = 1
		}
		for _, mood := range c.Categories[i].Moods {
			key := strings.ToLower(strings.TrimSpace(mood))
			moods[key] = append(moods[key], c.Categories[i].Name)
		}
	}
	c.Moods = moods
	regions := make(map[string]media.Region, len(c.Regions))
	for key, region := range c.Regions {
		regions[filepath.ToSlash(filepath.Clean(key))] = region
	}
	c.Regions = regions
}

func (c *Catalog) weight(category string) float64 {
	for _, cat := range c.Categories {
		if cat.Name == category {
			return cat.Weight
		}
	}
	return 1
}

// Region returns the subject hint for an image path relative to images/.
func (c *Catalog) Region(rel string) *media.Region {
	region, ok := c.Regions[filepath.ToSlash(filepath.Clean(rel))]
	if !ok {
		return nil
	}
	return &region
}

// ChooseCategory picks the category to draw from. An explicit category wins
// when it still has images; then the mood's categories; then any category
// with images, weighted.
func (c *Catalog) ChooseCategory(available map[string]int, category, mood string, rng *rand.Rand) (string, bool) {
	category = strings.ToLower(strings.TrimSpace(category))
	if available[category] > 0 {
		return category, true
	}
	var preferred []string
	for _, name := range c.Moods[strings.ToLower(strings.TrimSpace(mood))] {
		if available[name] > 0 {
			preferred = append(preferred, name)
		}
	}
	if len(preferred) == 0 {
		for name, n := range available {
			if n > 0 {
				preferred = append(preferred, name)
			}
		}
	}
	if len(preferred) == 0 {
		return "", false
	}
	slices.Sort(preferred)
	total := 0.0
	for _, name := range preferred {
		total += c.weight(name)
	}
	pick := rng.Float64() * total
	for _, name := range preferred {
		pick -= c.weight(name)
		if pick < 0 {
			return name, true
		}
	}
	return preferred[len(preferred)-1], true
}
