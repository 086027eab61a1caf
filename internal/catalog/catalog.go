// Package catalog holds the read-only product list and its query operations.
// A Catalog is built once per process and is safe for concurrent readers.
package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/fjod/storefront/internal/domain"
)

// DefaultFeaturedLimit is the number of products shown on the landing page.
const DefaultFeaturedLimit = 8

var (
	ErrDuplicateSKU   = errors.New("duplicate sku")
	ErrInvalidProduct = errors.New("invalid product")
)

// SortKey selects the ordering applied by Sort.
type SortKey string

const (
	SortPriceAsc  SortKey = "price-asc"
	SortPriceDesc SortKey = "price-desc"
	SortName      SortKey = "name"
)

type Catalog struct {
	products []domain.Product
	byID     map[string]int
	bySlug   map[string]int
	bySKU    map[string]int
	tags     []string
}

// New validates the products and indexes them. The catalog keeps its own copy.
func New(products []domain.Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]domain.Product, len(products)),
		byID:     make(map[string]int, len(products)),
		bySlug:   make(map[string]int, len(products)),
		bySKU:    make(map[string]int, len(products)),
	}
	copy(c.products, products)

	tagSet := make(map[string]struct{})
	for i, p := range c.products {
		if p.SKU == "" {
			return nil, errors.Wrapf(ErrInvalidProduct, "product %q has no sku", p.ID)
		}
		if p.Price < 0 {
			return nil, errors.Wrapf(ErrInvalidProduct, "sku %s: negative price", p.SKU)
		}
		if p.Stock < 0 {
			return nil, errors.Wrapf(ErrInvalidProduct, "sku %s: negative stock", p.SKU)
		}
		if _, ok := c.bySKU[p.SKU]; ok {
			return nil, errors.Wrapf(ErrDuplicateSKU, "sku %s", p.SKU)
		}

		c.bySKU[p.SKU] = i
		if p.ID != "" {
			c.byID[p.ID] = i
		}
		if p.Slug != "" {
			c.bySlug[p.Slug] = i
		}
		for _, t := range p.Tags {
			tagSet[t] = struct{}{}
		}
	}

	c.tags = make([]string, 0, len(tagSet))
	for t := range tagSet {
		c.tags = append(c.tags, t)
	}
	slices.Sort(c.tags)

	return c, nil
}

// All returns every product in catalog order.
func (c *Catalog) All() []domain.Product {
	return slices.Clone(c.products)
}

func (c *Catalog) Len() int {
	return len(c.products)
}

func (c *Catalog) ByID(id string) (domain.Product, bool) {
	return c.lookup(c.byID, id)
}

func (c *Catalog) BySlug(slug string) (domain.Product, bool) {
	return c.lookup(c.bySlug, slug)
}

// BySKU is the lookup used for checkout price revalidation.
func (c *Catalog) BySKU(sku string) (domain.Product, bool) {
	return c.lookup(c.bySKU, sku)
}

func (c *Catalog) lookup(index map[string]int, key string) (domain.Product, bool) {
	i, ok := index[key]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[i], true
}

// Featured returns the first limit products. A non-positive limit uses DefaultFeaturedLimit.
func (c *Catalog) Featured(limit int) []domain.Product {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}
	if limit > len(c.products) {
		limit = len(c.products)
	}
	return slices.Clone(c.products[:limit])
}

// Search matches the query case-insensitively against name, brand and tags.
// An empty query matches everything.
func (c *Catalog) Search(query string) []domain.Product {
	term := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Product, 0)
	for _, p := range c.products {
		if matches(p, term) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p domain.Product, term string) bool {
	if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.Brand), term) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

// FilterByTag returns the products carrying exactly tag.
func (c *Catalog) FilterByTag(tag string) []domain.Product {
	return WithTag(c.products, tag)
}

// WithTag keeps the products carrying exactly tag, in input order.
func WithTag(products []domain.Product, tag string) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.HasTag(tag) {
			out = append(out, p)
		}
	}
	return out
}

// Tags returns the sorted set of every tag in the catalog.
func (c *Catalog) Tags() []string {
	return slices.Clone(c.tags)
}

// Sort returns a sorted copy of products. Unknown keys keep the input order.
func Sort(products []domain.Product, by SortKey) []domain.Product {
	out := slices.Clone(products)

	switch by {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b domain.Product) int { return cmp.Compare(a.Price, b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b domain.Product) int { return cmp.Compare(b.Price, a.Price) })
	case SortName:
		// Collators keep scratch buffers and are not safe to share.
		col := collate.New(language.English)
		slices.SortStableFunc(out, func(a, b domain.Product) int { return col.CompareString(a.Name, b.Name) })
	}
	return out
}

// ParseSortKey maps user input to a SortKey; ok is false for unknown values.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortPriceAsc, SortPriceDesc, SortName:
		return k, true
	}
	return "", false
}
