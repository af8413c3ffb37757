package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"example.com/ai-shopmate/backend/internal/models"
)

type yamlCatalog struct {
	Products []models.Product `yaml:"products"`
}

// parseYAML принимает как список товаров, так и документ с ключом products.
func parseYAML(data []byte) ([]models.Product, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidCatalog, err)
	}
	if len(node.Content) == 0 {
		return nil, fmt.Errorf("%w: empty yaml document", ErrInvalidCatalog)
	}

	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		var products []models.Product
		if err := root.Decode(&products); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidCatalog, err)
		}
		return products, nil
	}

	var doc yamlCatalog
	if err := root.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidCatalog, err)
	}
	return doc.Products, nil
}
