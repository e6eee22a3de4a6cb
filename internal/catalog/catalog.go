// Package catalog holds the static provider/model capability table,
// loaded from YAML at startup. It mirrors the shape of
// connector/openai/defaults.go's DefaultModelCapabilities map, expressed
// as data rather than a Go literal. The default table is embedded in the
// binary; Load merges an optional override document over it.
package catalog

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed providers.yaml
var defaultCatalogYAML []byte

// Capabilities describes what a model variant supports; unused by the
// correction pipeline itself but surfaced through GET /api/models so
// clients can filter model pickers.
type Capabilities struct {
	Vision     bool `yaml:"vision"`
	Streaming  bool `yaml:"streaming"`
	Reasoning  bool `yaml:"reasoning"`
}

// ProviderInfo is one entry in the catalog.
type ProviderInfo struct {
	DisplayName string                  `yaml:"display_name"`
	Models      map[string]Capabilities `yaml:"models"`
}

// Catalog is the full provider table.
type Catalog struct {
	Providers map[string]ProviderInfo `yaml:"providers"`
}

// Load parses the embedded default catalog, optionally overridden (merged)
// by a user-supplied YAML document.
func Load(override []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(defaultCatalogYAML, c); err != nil {
		return nil, err
	}
	if len(override) > 0 {
		var o Catalog
		if err := yaml.Unmarshal(override, &o); err != nil {
			return nil, err
		}
		for name, info := range o.Providers {
			c.Providers[name] = info
		}
	}
	return c, nil
}

// Names returns the known provider names in a stable order.
func (c *Catalog) Names() []string {
	order := []string{"openai", "deepseek", "ollama"}
	out := make([]string, 0, len(order))
	for _, n := range order {
		if _, ok := c.Providers[n]; ok {
			out = append(out, n)
		}
	}
	return out
}
