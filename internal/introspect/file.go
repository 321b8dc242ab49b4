package introspect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// LoadFile reads a schema description from YAML:
//
//	tables:
//	  - name: orders
//	    columns:
//	      - name: id
//	      - name: customer_id
//	    foreign_keys:
//	      - relations:
//	          - column: customer_id
//	            referenced_table: customers
//	            referenced_column: id
func LoadFile(path string) (*core.DatabaseSchema, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var schema core.DatabaseSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	return &schema, nil
}
