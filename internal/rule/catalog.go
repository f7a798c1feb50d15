package rule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/acted/rules-engine/internal/messagetemplate"
	"github.com/acted/rules-engine/internal/schema"
	"gopkg.in/yaml.v3"
)

// Catalog is a rule pack: the schemas, templates and rules published together
type Catalog struct {
	Schemas   []schema.Schema            `json:"schemas"`
	Templates []messagetemplate.Template `json:"templates"`
	Rules     []Rule                     `json:"rules"`
}

// LoadCatalogFile reads a YAML (.yaml, .yml) or JSON rule pack
func LoadCatalogFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLCatalog(data)
	default:
		return ParseJSONCatalog(data)
	}
}

// ParseJSONCatalog decodes a JSON rule pack
func ParseJSONCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	return c, nil
}

// ParseYAMLCatalog decodes a YAML rule pack. The document goes through JSON so that
// rules decode with the same action and decimal handling as the JSON wire format.
func ParseYAMLCatalog(data []byte) (Catalog, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Catalog{}, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog is not representable as JSON: %w", err)
	}
	return ParseJSONCatalog(b)
}
