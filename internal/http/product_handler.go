package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
)

// ProductCatalog is the read side of the catalog served over HTTP.
type ProductCatalog interface {
	All() []domain.Product
	BySlug(slug string) (domain.Product, bool)
	Featured(limit int) []domain.Product
	Search(query string) []domain.Product
	Tags() []string
}

type ProductHandler struct {
	catalog ProductCatalog
}

func NewProductHandler(c ProductCatalog) *ProductHandler {
	return &ProductHandler{catalog: c}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
}

type TagsResponse struct {
	Tags []string `json:"tags"`
}

// GET /api/v1/products?q=&tag=&sort=&limit=&featured=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	var sortKey catalog.SortKey
	if raw := q.Get("sort"); raw != "" {
		k, ok := catalog.ParseSortKey(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid_sort", "sort must be one of price-asc, price-desc, name")
			return
		}
		sortKey = k
	}

	var products []domain.Product
	switch {
	case q.Get("featured") == "true":
		products = h.catalog.Featured(limit)
	case strings.TrimSpace(q.Get("q")) != "":
		products = h.catalog.Search(q.Get("q"))
	default:
		products = h.catalog.All()
	}

	if tag := q.Get("tag"); tag != "" {
		products = catalog.WithTag(products, tag)
	}

	if sortKey != "" {
		products = catalog.Sort(products, sortKey)
	}

	total := len(products)
	if limit > 0 && limit < len(products) {
		products = products[:limit]
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products, Total: total})
}

// GET /api/v1/products/{slug}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	p, ok := h.catalog.BySlug(slug)
	if !ok {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// GET /api/v1/tags
func (h *ProductHandler) Tags(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &TagsResponse{Tags: h.catalog.Tags()})
}
