// Package catalog serves category, destination and schema lookups from a
// catalog document.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/solatis/ruledesk/internal/types"
)

/*
 * Catalog lookups.
 *
 * A catalog document names JSON-Schema-like field schemas by id and maps
 * each category to a schema id and its destinations:
 *
 *   schemas:
 *     images-v1: {type: object, properties: {...}}
 *   categories:
 *     partners-images:
 *       schemaId: images-v1
 *       destinations:
 *         A: {typeOptions: {...}, validOperators: [EQUALS], extraPropertiesSchema: {...}}
 *
 * The document is fetched once through a Loader and cached. Concurrent
 * first lookups share one fetch (singleflight). Refresh refetches and bumps
 * the revision, which invalidates validators built from the old document.
 */

// Document is the decoded catalog file.
type Document struct {
	Schemas    map[string]map[string]any     `yaml:"schemas" json:"schemas"`
	Categories map[string]types.CategoryInfo `yaml:"categories" json:"categories"`
}

// Loader fetches a catalog document.
type Loader interface {
	Load(ctx context.Context) (*Document, error)
}

// FileLoader reads a YAML or JSON catalog file.
type FileLoader struct {
	Path string
}

// Load implements Loader.
func (l FileLoader) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// StaticLoader serves a fixed document.
type StaticLoader struct {
	Doc *Document
}

// Load implements Loader.
func (l StaticLoader) Load(context.Context) (*Document, error) {
	if l.Doc == nil {
		return &Document{}, nil
	}
	return l.Doc, nil
}

// Parse decodes and checks a catalog document. JSON input is accepted as
// YAML.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for name, cat := range doc.Categories {
		for dest, info := range cat.Destinations {
			for _, op := range info.ValidOperators {
				if !op.Valid() {
					return nil, fmt.Errorf("category %q destination %q: %w: %q", name, dest, types.ErrInvalidOperator, op)
				}
			}
		}
	}
	return &doc, nil
}

// snapshot is one loaded document with its flattened schemas.
type snapshot struct {
	doc    *Document
	fields map[string]types.FieldSet
}

// Catalog is safe for concurrent use.
type Catalog struct {
	loader Loader
	logger *zap.Logger

	group    singleflight.Group
	mu       sync.RWMutex
	current  *snapshot
	revision atomic.Uint64
}

// New creates a catalog over loader. The document is loaded lazily.
func New(loader Loader, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{loader: loader, logger: logger}
}

// Revision identifies the loaded document; zero before the first load.
func (c *Catalog) Revision() uint64 {
	return c.revision.Load()
}

// Refresh reloads the document and bumps the revision.
func (c *Catalog) Refresh(ctx context.Context) error {
	_, err := c.fetch(ctx, true)
	return err
}

func (c *Catalog) get(ctx context.Context) (*snapshot, error) {
	c.mu.RLock()
	s := c.current
	c.mu.RUnlock()
	if s != nil {
		return s, nil
	}
	return c.fetch(ctx, false)
}

func (c *Catalog) fetch(ctx context.Context, force bool) (*snapshot, error) {
	key := "load"
	if force {
		key = "refresh"
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if !force {
			c.mu.RLock()
			s := c.current
			c.mu.RUnlock()
			if s != nil {
				return s, nil
			}
		}

		doc, err := c.loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		s := &snapshot{doc: doc, fields: make(map[string]types.FieldSet, len(doc.Schemas))}
		for id, schema := range doc.Schemas {
			s.fields[id] = FlattenSchema(schema)
		}

		c.mu.Lock()
		c.current = s
		rev := c.revision.Add(1)
		c.mu.Unlock()

		c.logger.Info("catalog loaded",
			zap.Uint64("revision", rev),
			zap.Int("categories", len(doc.Categories)),
			zap.Int("schemas", len(doc.Schemas)))
		return s, nil
	})
	if err != nil {
		c.logger.Warn("catalog load failed", zap.Error(err))
		return nil, err
	}
	return v.(*snapshot), nil
}

// Categories returns the category names in sorted order.
func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	s, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.doc.Categories))
	for name := range s.doc.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CategoryInfo returns the schema id and destinations of category.
func (c *Catalog) CategoryInfo(ctx context.Context, category string) (types.CategoryInfo, error) {
	s, err := c.get(ctx)
	if err != nil {
		return types.CategoryInfo{}, err
	}
	info, ok := s.doc.Categories[category]
	if !ok {
		return types.CategoryInfo{}, fmt.Errorf("%w: %q", types.ErrUnknownCategory, category)
	}
	return info, nil
}

// Destination returns one destination of category.
func (c *Catalog) Destination(ctx context.Context, category, destination string) (types.DestinationInfo, error) {
	info, err := c.CategoryInfo(ctx, category)
	if err != nil {
		return types.DestinationInfo{}, err
	}
	dest, ok := info.Destinations[destination]
	if !ok {
		return types.DestinationInfo{}, fmt.Errorf("%w: %q in category %q", types.ErrUnknownDestination, destination, category)
	}
	return dest, nil
}

// Schema returns the schema document with id.
func (c *Catalog) Schema(ctx context.Context, schemaID string) (map[string]any, error) {
	s, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	schema, ok := s.doc.Schemas[schemaID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownSchema, schemaID)
	}
	return schema, nil
}

// Fields returns the flattened field set of category's schema.
func (c *Catalog) Fields(ctx context.Context, category string) (types.FieldSet, error) {
	info, err := c.CategoryInfo(ctx, category)
	if err != nil {
		return types.FieldSet{}, err
	}
	s, err := c.get(ctx)
	if err != nil {
		return types.FieldSet{}, err
	}
	fs, ok := s.fields[info.SchemaID]
	if !ok {
		return types.FieldSet{}, fmt.Errorf("%w: %q for category %q", types.ErrUnknownSchema, info.SchemaID, category)
	}
	return fs, nil
}
