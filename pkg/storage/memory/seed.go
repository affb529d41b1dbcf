package memory

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vetora/vetora/pkg/storage"
)

// LoadSeedFile inserts the records of a YAML fixture file. The file maps
// collection names to lists of records:
//
//	profiles:
//	  - id: 9b6f...
//	    tenant_id: clinic-a
//	    role: vet
//	kennels:
//	  - id: 4c1e...
//	    tenant_id: clinic-a
//	    status: available
func (s *Store) LoadSeedFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}
	return s.LoadSeed(ctx, data)
}

// LoadSeed inserts the records of a YAML fixture document and returns the
// number inserted. Collections are loaded in name order.
func (s *Store) LoadSeed(ctx context.Context, data []byte) (int, error) {
	var doc map[string][]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parsing seed: %w", err)
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	n := 0
	for _, name := range names {
		for i, raw := range doc[name] {
			if err := s.Insert(ctx, name, storage.Record(raw)); err != nil {
				return n, fmt.Errorf("seeding %s[%d]: %w", name, i, err)
			}
			n++
		}
	}
	return n, nil
}
