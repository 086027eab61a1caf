// Package client is the storefront's client side: it talks to the storefront
// server over HTTP for catalog reads and checkout.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/pricing"
)

const (
	checkoutPath = "/api/checkout"
	productsPath = "/api/v1/products"

	maxResponseSize = 1 << 20
)

// User-facing messages returned in Result.Error.
const (
	MsgEmptyCart       = "Your cart is empty."
	MsgNetwork         = "Network error while creating the payment session."
	MsgInvalidResponse = "Invalid response from the server."
	MsgCheckoutFailed  = "Checkout failed."
	MsgMissingURL      = "The server did not return a checkout URL."
)

type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(log *zap.Logger) Option {
	return func(cl *Client) { cl.log = log }
}

// New returns a client for the server at baseURL, which also anchors
// relative image references.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL: u,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c, nil
}

// Result is the outcome of a checkout attempt: either URL or Error is set.
// Cause keeps the underlying error, if any, for logging.
type Result struct {
	URL   string
	Error string
	Cause error
}

func (r Result) OK() bool {
	return r.URL != "" && r.Error == ""
}

func failed(msg string, cause error) Result {
	return Result{Error: msg, Cause: cause}
}

// NewCheckoutItems converts cart lines to the checkout wire form: prices in
// cents and images as absolute URLs.
func NewCheckoutItems(lines []domain.CartLine, base *url.URL) []domain.CheckoutItem {
	items := make([]domain.CheckoutItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.CheckoutItem{
			SKU:        l.SKU,
			Name:       l.Name,
			UnitAmount: pricing.ToCents(l.Price),
			Qty:        int64(l.Qty),
			Image:      ResolveImage(base, l.Image),
		})
	}
	return items
}

// ResolveImage makes ref absolute against base. Absolute http(s) and data:
// references, empty references and unparsable ones are returned unchanged.
func ResolveImage(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return ref
	}

	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// CreateCheckoutSession asks the server for a hosted payment session. Every
// failure is reported through Result; an empty cart never reaches the network.
func (c *Client) CreateCheckoutSession(ctx context.Context, lines []domain.CartLine) Result {
	if len(lines) == 0 {
		return failed(MsgEmptyCart, nil)
	}

	body, err := json.Marshal(domain.CheckoutRequest{Items: NewCheckoutItems(lines, c.baseURL)})
	if err != nil {
		return failed(MsgCheckoutFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(checkoutPath), bytes.NewReader(body))
	if err != nil {
		return failed(MsgCheckoutFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("checkout request failed", zap.Error(err))
		return failed(MsgNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return failed(MsgNetwork, err)
	}

	var data struct {
		URL   string `json:"url"`
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		c.log.Warn("unparsable checkout response", zap.Int("status", resp.StatusCode), zap.Error(err))
		return failed(MsgInvalidResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := data.Error
		if msg == "" {
			msg = MsgCheckoutFailed
		}
		return failed(msg, errors.Errorf("checkout returned %d %s", resp.StatusCode, data.Code))
	}
	if data.URL == "" {
		return failed(MsgMissingURL, nil)
	}

	return Result{URL: data.URL}
}

// ProductQuery filters the catalog listing. Zero values are omitted.
type ProductQuery struct {
	Search string
	Tag    string
	Sort   string
	Limit  int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Products lists the server's catalog.
func (c *Client) Products(ctx context.Context, q ProductQuery) ([]domain.Product, error) {
	target := c.endpoint(productsPath)
	if enc := q.values().Encode(); enc != "" {
		target += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build products request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch products")
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize))
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = dec.Decode(&e)
		return nil, errors.Errorf("products: server returned %d: %s", resp.StatusCode, e.Error)
	}

	var out struct {
		Products []domain.Product `json:"products"`
	}
	if err := dec.Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out.Products, nil
}

// FindBySKU looks a product up in the server's catalog.
func (c *Client) FindBySKU(ctx context.Context, sku string) (domain.Product, bool, error) {
	products, err := c.Products(ctx, ProductQuery{})
	if err != nil {
		return domain.Product{}, false, err
	}
	for _, p := range products {
		if p.SKU == sku {
			return p, true, nil
		}
	}
	return domain.Product{}, false, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

// BaseURL is the server address images are resolved against.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}
