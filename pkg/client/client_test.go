package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/storefront/internal/domain"
)

func testLines() []domain.CartLine {
	return []domain.CartLine{
		{ID: "1", SKU: "SON-AERO", Name: "Aero", Price: 19.99, Image: "/images/aero.jpg", Qty: 2, MaxQty: 5},
		{ID: "2", SKU: "SUM-BTL", Name: "Bottle", Price: 0.29, Image: "https://cdn.example.com/b.jpg", Qty: 1, MaxQty: 1},
	}
}

type stubServer struct {
	calls atomic.Int32
	got   domain.CheckoutRequest
}

func newStub(t *testing.T, status int, body string) (*Client, *stubServer) {
	t.Helper()
	stub := &stubServer{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.calls.Add(1)
		if r.URL.Path == checkoutPath {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&stub.got))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, stub
}

func TestCreateCheckoutSession_EmptyCartMakesNoRequest(t *testing.T) {
	c, stub := newStub(t, http.StatusOK, `{"url":"https://pay.example.com/x"}`)

	res := c.CreateCheckoutSession(context.Background(), nil)
	assert.False(t, res.OK())
	assert.Equal(t, MsgEmptyCart, res.Error)

	res = c.CreateCheckoutSession(context.Background(), []domain.CartLine{})
	assert.Equal(t, MsgEmptyCart, res.Error)

	assert.Zero(t, stub.calls.Load())
}

func TestCreateCheckoutSession_Success(t *testing.T) {
	c, stub := newStub(t, http.StatusOK, `{"url":"https://pay.example.com/cs_1"}`)

	res := c.CreateCheckoutSession(context.Background(), testLines())

	require.True(t, res.OK(), "error: %s", res.Error)
	assert.Equal(t, "https://pay.example.com/cs_1", res.URL)
	assert.EqualValues(t, 1, stub.calls.Load())

	require.Len(t, stub.got.Items, 2)
	assert.Equal(t, int64(1999), stub.got.Items[0].UnitAmount)
	assert.Equal(t, int64(2), stub.got.Items[0].Qty)
	assert.Equal(t, c.baseURL.String()+"/images/aero.jpg", stub.got.Items[0].Image)
	assert.Equal(t, int64(29), stub.got.Items[1].UnitAmount)
	assert.Equal(t, "https://cdn.example.com/b.jpg", stub.got.Items[1].Image)
}

func TestCreateCheckoutSession_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error message", http.StatusBadRequest, `{"error":"some items changed price","code":"price_mismatch"}`, "some items changed price"},
		{"error without message", http.StatusBadGateway, `{}`, MsgCheckoutFailed},
		{"unparsable body", http.StatusOK, `<html>oops</html>`, MsgInvalidResponse},
		{"unparsable error body", http.StatusBadGateway, `Bad Gateway`, MsgInvalidResponse},
		{"missing url", http.StatusOK, `{"status":"ok"}`, MsgMissingURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newStub(t, tt.status, tt.body)

			res := c.CreateCheckoutSession(context.Background(), testLines())

			assert.False(t, res.OK())
			assert.Empty(t, res.URL)
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
}

func TestCreateCheckoutSession_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New(addr)
	require.NoError(t, err)

	res := c.CreateCheckoutSession(context.Background(), testLines())

	assert.Equal(t, MsgNetwork, res.Error)
	assert.Error(t, res.Cause)
}

func TestNew_RequiresAbsoluteURL(t *testing.T) {
	_, err := New("/relative")
	assert.Error(t, err)

	_, err = New("://bad")
	assert.Error(t, err)
}

func TestResolveImage(t *testing.T) {
	base, err := url.Parse("https://shop.example.com/store/")
	require.NoError(t, err)

	tests := map[string]string{
		"/images/a.jpg":              "https://shop.example.com/images/a.jpg",
		"images/a.jpg":               "https://shop.example.com/store/images/a.jpg",
		"https://cdn.example.com/a":  "https://cdn.example.com/a",
		"HTTP://cdn.example.com/a":   "HTTP://cdn.example.com/a",
		"data:image/png;base64,AAAA": "data:image/png;base64,AAAA",
		"":                           "",
		"%zz":                        "%zz",
	}
	for in, want := range tests {
		assert.Equal(t, want, ResolveImage(base, in), in)
	}
}

func TestNewCheckoutItems(t *testing.T) {
	base, _ := url.Parse("http://localhost:8080")

	items := NewCheckoutItems(testLines(), base)

	assert.Equal(t, []domain.CheckoutItem{
		{SKU: "SON-AERO", Name: "Aero", UnitAmount: 1999, Qty: 2, Image: "http://localhost:8080/images/aero.jpg"},
		{SKU: "SUM-BTL", Name: "Bottle", UnitAmount: 29, Qty: 1, Image: "https://cdn.example.com/b.jpg"},
	}, items)
}

func TestProducts(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, productsPath, r.URL.Path)
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"products":[{"sku":"A","name":"Alpha","price":1.5,"stock":2},{"sku":"B","name":"Beta","price":3,"stock":0}],"total":2}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	products, err := c.Products(context.Background(), ProductQuery{Search: "al", Sort: "name", Limit: 5})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "al", gotQuery.Get("q"))
	assert.Equal(t, "name", gotQuery.Get("sort"))
	assert.Equal(t, "5", gotQuery.Get("limit"))
	assert.False(t, gotQuery.Has("tag"))

	p, ok, err := c.FindBySKU(context.Background(), "B")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Beta", p.Name)

	_, ok, err = c.FindBySKU(context.Background(), "Z")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProducts_ServerError(t *testing.T) {
	c, _ := newStub(t, http.StatusBadRequest, `{"error":"sort must be one of price-asc, price-desc, name","code":"invalid_sort"}`)

	_, err := c.Products(context.Background(), ProductQuery{Sort: "newest"})

	assert.ErrorContains(t, err, "sort must be one of")
}
