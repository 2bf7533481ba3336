package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/Dosada05/tournament-officiating/models"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"
)

// DefaultBudget is the point budget used when a catalog does not set one.
const DefaultBudget = 10

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

type ItemSpec struct {
	Points int    `yaml:"points"`
	Family string `yaml:"family"`
}

// Catalog holds point values, item families, attachment bonuses and the global ban list.
type Catalog struct {
	Budget             int                 `yaml:"budget"`
	AttachmentFamilies []string            `yaml:"attachment_families"`
	Attachments        map[string]int      `yaml:"attachments"`
	Items              map[string]ItemSpec `yaml:"items"`
	BanList            []string            `yaml:"ban_list"`

	index    map[string]string
	families map[string]bool
	names    []string
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse rules catalog: %w", err)
	}
	if c.Budget < 0 {
		return nil, fmt.Errorf("rules catalog budget must not be negative, got %d", c.Budget)
	}
	if c.Budget == 0 {
		c.Budget = DefaultBudget
	}
	c.build()
	return &c, nil
}

// LoadCatalog reads a YAML catalog from path; an empty path yields the embedded default.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) build() {
	c.index = make(map[string]string, len(c.Items))
	c.names = make([]string, 0, len(c.Items))
	for name := range c.Items {
		c.index[models.NormalizeName(name)] = name
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)

	c.families = make(map[string]bool, len(c.AttachmentFamilies))
	for _, f := range c.AttachmentFamilies {
		c.families[models.NormalizeName(f)] = true
	}
}

// Lookup resolves an item name case-insensitively to its canonical name and spec.
func (c *Catalog) Lookup(name string) (string, ItemSpec, bool) {
	canonical, ok := c.index[models.NormalizeName(name)]
	if !ok {
		return "", ItemSpec{}, false
	}
	return canonical, c.Items[canonical], true
}

// AttachmentBonus returns the flat bonus of tag if the item may carry attachments.
func (c *Catalog) AttachmentBonus(item string, tag models.Attachment) int {
	if tag == "" {
		return 0
	}
	_, spec, ok := c.Lookup(item)
	if !ok || !c.families[models.NormalizeName(spec.Family)] {
		return 0
	}
	for name, bonus := range c.Attachments {
		if models.NormalizeName(name) == models.NormalizeName(string(tag)) {
			return bonus
		}
	}
	return 0
}

func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Suggest returns up to limit catalog names that fuzzily match a typed name, best first.
func (c *Catalog) Suggest(name string, limit int) []string {
	if name == "" || limit <= 0 {
		return nil
	}
	ranks := fuzzy.RankFindFold(name, c.names)
	sort.Sort(ranks)
	out := make([]string, 0, limit)
	for _, r := range ranks {
		if len(out) == limit {
			break
		}
		out = append(out, r.Target)
	}
	return out
}
