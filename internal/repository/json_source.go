package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"os"

	"github.com/go-faster/errors"

	"github.com/fjod/storefront/internal/domain"
)

//go:embed data/products.json
var defaultProducts []byte

// JSONSource reads the catalog from a JSON array of products. An empty path
// uses the catalog bundled with the binary.
type JSONSource struct {
	path string
}

func NewJSONSource(path string) *JSONSource {
	return &JSONSource{path: path}
}

func (s *JSONSource) GetAllProducts(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := defaultProducts
	if s.path != "" {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return nil, errors.Wrap(err, "read catalog file")
		}
		data = b
	}

	return decodeProducts(data)
}

func decodeProducts(data []byte) ([]domain.Product, error) {
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return products, nil
}
