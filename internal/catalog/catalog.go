// Package catalog loads metric and variant definitions from YAML files.
//
// A catalog directory holds *.yaml or *.yml files, each with one or more
// documents separated by "---". Every document declares its kind:
//
//	kind: metric
//	id: orders
//	table_name: orders
//	measures:
//	  - name: cnt
//	    type: count
//	    query: id
//
// The loaded catalog implements core.Fetcher so it can feed the compiler.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leapmetric/internal/dag"
	"github.com/leapstack-labs/leapmetric/pkg/core"
)

// Catalog is an immutable set of definitions keyed by id.
type Catalog struct {
	dir   string
	defs  map[string]*core.Definition
	files map[string]string
}

// New builds a catalog from definitions already in memory.
func New(defs ...*core.Definition) (*Catalog, error) {
	c := &Catalog{
		defs:  make(map[string]*core.Definition),
		files: make(map[string]string),
	}
	for _, d := range defs {
		if err := c.add("", d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Load reads every YAML file under dir. Hidden files and directories are skipped.
func Load(dir string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog directory: %w", err)
	}

	c, _ := New()
	c.dir = absDir

	logger.Debug("loading catalog", "dir", absDir)

	err = filepath.Walk(absDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if strings.HasPrefix(info.Name(), ".") && path != absDir {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !IsCatalogFile(path) {
			return nil
		}

		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from filepath.Walk within the catalog directory
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		defs, err := Parse(path, data)
		if err != nil {
			return err
		}
		for _, d := range defs {
			if err := c.add(path, d); err != nil {
				return err
			}
		}
		logger.Debug("loaded catalog file", "path", path, "definitions", len(defs))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// IsCatalogFile reports whether path has a YAML extension.
func IsCatalogFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (c *Catalog) add(file string, d *core.Definition) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	id := d.ID()
	if _, exists := c.defs[id]; exists {
		return &DuplicateIDError{ID: id, First: c.files[id], Second: file}
	}
	c.defs[id] = d
	c.files[id] = file
	return nil
}

// Dir returns the absolute directory the catalog was loaded from.
func (c *Catalog) Dir() string {
	return c.dir
}

// Fetch implements core.Fetcher.
func (c *Catalog) Fetch(_ context.Context, id string) (*core.Definition, error) {
	d, ok := c.defs[id]
	if !ok {
		return nil, &core.MetricNotFoundError{ID: id}
	}
	return d, nil
}

// List returns all definitions sorted by id.
func (c *Catalog) List() []*core.Definition {
	out := make([]*core.Definition, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// File returns the file a definition was loaded from.
func (c *Catalog) File(id string) string {
	return c.files[id]
}

// IDsInFile returns the ids defined in path, sorted.
func (c *Catalog) IDsInFile(path string) []string {
	var ids []string
	for id, f := range c.files {
		if f == path {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Graph returns the dependency graph of the catalog.
func (c *Catalog) Graph() *dag.Graph {
	return dag.Build(c.List())
}
