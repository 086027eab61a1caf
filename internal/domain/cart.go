package domain

// CartLine is one SKU in the client cart. Price and MaxQty are snapshots taken
// from the product when the line was added.
type CartLine struct {
	ID     string  `json:"id"`
	SKU    string  `json:"sku"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
	Qty    int     `json:"qty"`
	MaxQty int     `json:"maxQty"`
}

// Valid reports whether the line satisfies 1 <= Qty <= MaxQty and has a SKU.
func (l CartLine) Valid() bool {
	return l.SKU != "" && l.Qty >= 1 && l.Qty <= l.MaxQty && l.Price >= 0
}

// CloneLines returns a copy of lines that callers may mutate freely.
func CloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}
