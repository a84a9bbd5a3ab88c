package catalog

import "github.com/zhouzirui/calm-companion/backend/internal/analysis/support"

// Store exposes reply candidates per tag.
type Store interface {
	Options(tag support.Tag) []string
	Has(tag support.Tag) bool
}

// Catalog implements Store with an immutable in-memory map.
type Catalog struct {
	items map[support.Tag][]string
}

// New returns a Catalog holding a private copy of the supplied entries.
func New(items map[support.Tag][]string) *Catalog {
	copied := make(map[support.Tag][]string, len(items))
	for tag, options := range items {
		copied[tag] = append([]string(nil), options...)
	}
	return &Catalog{items: copied}
}

// Options returns a copy of the candidates for tag, nil when there are none.
func (c *Catalog) Options(tag support.Tag) []string {
	if len(c.items[tag]) == 0 {
		return nil
	}
	return append([]string(nil), c.items[tag]...)
}

// Has reports whether the catalog carries candidates for tag.
func (c *Catalog) Has(tag support.Tag) bool {
	return len(c.items[tag]) > 0
}
