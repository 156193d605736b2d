package validation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/solatis/ruledesk/internal/types"
)

// SchemaSource supplies the category data validators are built from.
// Implemented by the catalog.
type SchemaSource interface {
	CategoryInfo(ctx context.Context, category string) (types.CategoryInfo, error)
	Fields(ctx context.Context, category string) (types.FieldSet, error)
	// Revision changes whenever the underlying catalog is reloaded.
	Revision() uint64
}

// Compiled bundles everything built for one category and destination.
type Compiled struct {
	Category    string
	Destination string
	SchemaID    string
	Info        types.DestinationInfo
	Fields      types.FieldSet
	Tree        *Validator
	Extra       *ExtraPropertiesValidator
}

type cacheKey struct {
	category    string
	destination string
	schemaID    string
	revision    uint64
}

// Cache memoizes compiled validators per category, destination and schema
// id. Entries from older catalog revisions are dropped on the next lookup.
type Cache struct {
	src SchemaSource

	mu       sync.Mutex
	revision uint64
	entries  map[cacheKey]*Compiled

	builds atomic.Int64
}

// NewCache creates a cache over src.
func NewCache(src SchemaSource) *Cache {
	return &Cache{src: src, entries: make(map[cacheKey]*Compiled)}
}

// Get returns the compiled validators for category and destination,
// building them on first use. Returns ErrUnknownCategory or
// ErrUnknownDestination for names the catalog does not define. A category
// whose schema is missing validates with the permissive fallback.
func (c *Cache) Get(ctx context.Context, category, destination string) (*Compiled, error) {
	info, err := c.src.CategoryInfo(ctx, category)
	if err != nil {
		return nil, err
	}
	dest, ok := info.Destinations[destination]
	if !ok {
		return nil, fmt.Errorf("%w: %q in category %q", types.ErrUnknownDestination, destination, category)
	}

	rev := c.src.Revision()
	key := cacheKey{category: category, destination: destination, schemaID: info.SchemaID, revision: rev}

	c.mu.Lock()
	if rev != c.revision {
		c.entries = make(map[cacheKey]*Compiled)
		c.revision = rev
	}
	if hit, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return hit, nil
	}
	c.mu.Unlock()

	fields, err := c.src.Fields(ctx, category)
	if err != nil {
		if !errors.Is(err, types.ErrUnknownSchema) {
			return nil, err
		}
		fields = types.FieldSet{}
	}
	extra, err := CompileExtraProperties(dest.ExtraPropertiesSchema)
	if err != nil {
		return nil, fmt.Errorf("destination %q: %w", destination, err)
	}

	compiled := &Compiled{
		Category:    category,
		Destination: destination,
		SchemaID:    info.SchemaID,
		Info:        dest,
		Fields:      fields,
		Tree:        Build(fields, dest.AllowedOperators()),
		Extra:       extra,
	}
	c.builds.Add(1)

	c.mu.Lock()
	if key.revision == c.revision {
		c.entries[key] = compiled
	}
	c.mu.Unlock()
	return compiled, nil
}

// Builds returns how many validators the cache has built.
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}
