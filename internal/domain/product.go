package domain

// Product is a catalog entry. Products are immutable once the catalog is built.
type Product struct {
	ID             string            `json:"id"`
	Slug           string            `json:"slug"`
	Name           string            `json:"name"`
	Brand          string            `json:"brand"`
	Images         []string          `json:"images"`
	Price          float64           `json:"price"`
	CompareAtPrice *float64          `json:"compareAtPrice,omitempty"`
	SKU            string            `json:"sku"`
	Stock          int               `json:"stock"`
	Tags           []string          `json:"tags"`
	Description    string            `json:"description"`
	Specs          map[string]string `json:"specs"`
}

// PrimaryImage returns the first image reference or "" when the product has none.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// HasTag reports whether the product carries the exact tag.
func (p *Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
