package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/storage"
)

// DefaultCartKey is the storage key the cart is persisted under.
const DefaultCartKey = "ecommerce-cart"

// CartListener receives the full cart after every successful save.
type CartListener func(lines []domain.CartLine)

type CartStore struct {
	storage storage.Storage
	key     string
	log     *zap.Logger

	sfg singleflight.Group // collapses concurrent loads of the same key
	mu  sync.Mutex         // serializes read-modify-write within this process

	subsMu sync.RWMutex
	subs   map[uint64]CartListener
	nextID uint64
}

type CartStoreOption func(*CartStore)

// WithCartKey stores the cart under key instead of DefaultCartKey.
func WithCartKey(key string) CartStoreOption {
	return func(s *CartStore) { s.key = key }
}

func WithCartLogger(log *zap.Logger) CartStoreOption {
	return func(s *CartStore) { s.log = log }
}

func NewCartStore(st storage.Storage, opts ...CartStoreOption) *CartStore {
	s := &CartStore{
		storage: st,
		key:     DefaultCartKey,
		log:     zap.NewNop(),
		subs:    make(map[uint64]CartListener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the persisted cart. Absent, unreadable or corrupt data yields
// an empty cart; it is never an error.
func (s *CartStore) Load(ctx context.Context) []domain.CartLine {
	v, _, _ := s.sfg.Do(s.key, func() (interface{}, error) {
		return s.read(ctx), nil
	})
	return domain.CloneLines(v.([]domain.CartLine))
}

// Save replaces the persisted cart and notifies subscribers. Lines that
// Load would discard are rejected with ErrInvalidCart and nothing is written.
func (s *CartStore) Save(ctx context.Context, lines []domain.CartLine) error {
	if err := validateLines(lines); err != nil {
		return err
	}

	s.mu.Lock()
	err := s.write(ctx, lines)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.notify(lines)
	return nil
}

// Add puts qty units of product into the cart, never exceeding the product's
// current stock. An existing line keeps its price snapshot and has its
// maximum refreshed to the current stock; a line clamped to zero is dropped.
func (s *CartStore) Add(ctx context.Context, product domain.Product, qty int) ([]domain.CartLine, error) {
	if qty < 1 {
		return nil, errors.Wrapf(ErrInvalidQuantity, "add %d of %s", qty, product.SKU)
	}

	return s.update(ctx, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		i := indexOf(lines, product.SKU)
		if i < 0 {
			if n := min(qty, product.Stock); n >= 1 {
				lines = append(lines, domain.CartLine{
					ID:     product.ID,
					SKU:    product.SKU,
					Name:   product.Name,
					Price:  product.Price,
					Image:  product.PrimaryImage(),
					Qty:    n,
					MaxQty: product.Stock,
				})
			}
			return lines, true
		}

		n := min(lines[i].Qty+qty, product.Stock)
		if n < 1 {
			return removeAt(lines, i), true
		}
		lines[i].Qty = n
		lines[i].MaxQty = product.Stock
		return lines, true
	})
}

// Remove deletes the line for sku. A missing sku is not an error; the cart
// is persisted either way.
func (s *CartStore) Remove(ctx context.Context, sku string) ([]domain.CartLine, error) {
	return s.update(ctx, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		if i := indexOf(lines, sku); i >= 0 {
			lines = removeAt(lines, i)
		}
		return lines, true
	})
}

// UpdateQuantity sets the quantity of sku, clamped to the line maximum.
// qty <= 0 removes the line. An unknown sku leaves the cart untouched.
func (s *CartStore) UpdateQuantity(ctx context.Context, sku string, qty int) ([]domain.CartLine, error) {
	if qty <= 0 {
		return s.Remove(ctx, sku)
	}

	return s.update(ctx, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		i := indexOf(lines, sku)
		if i < 0 {
			return lines, false
		}
		lines[i].Qty = min(qty, lines[i].MaxQty)
		return lines, true
	})
}

// Clear persists an empty cart.
func (s *CartStore) Clear(ctx context.Context) error {
	return s.Save(ctx, []domain.CartLine{})
}

// ItemCount is the sum of quantities over all lines.
func (s *CartStore) ItemCount(ctx context.Context) int {
	return CountItems(s.Load(ctx))
}

// Subscribe registers fn for change notifications. Listeners run
// synchronously on the goroutine that saved, after the store lock is
// released. The returned func unsubscribes.
func (s *CartStore) Subscribe(fn CartListener) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

func (s *CartStore) update(
	ctx context.Context,
	mutate func([]domain.CartLine) ([]domain.CartLine, bool),
) ([]domain.CartLine, error) {
	s.mu.Lock()
	lines, persist := mutate(s.read(ctx))
	if persist {
		if err := s.write(ctx, lines); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	s.mu.Unlock()

	if persist {
		s.notify(lines)
	}
	return domain.CloneLines(lines), nil
}

func (s *CartStore) read(ctx context.Context) []domain.CartLine {
	data, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("cart storage read failed, using empty cart", zap.String("key", s.key), zap.Error(err))
		}
		return []domain.CartLine{}
	}

	lines, err := decodeCart(data)
	if err != nil {
		s.log.Warn("discarding corrupt cart", zap.String("key", s.key), zap.Error(err))
		return []domain.CartLine{}
	}
	return lines
}

func (s *CartStore) write(ctx context.Context, lines []domain.CartLine) error {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "marshal cart")
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		return errors.Wrap(err, "persist cart")
	}
	return nil
}

func (s *CartStore) notify(lines []domain.CartLine) {
	s.subsMu.RLock()
	listeners := make([]CartListener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range listeners {
		fn(domain.CloneLines(lines))
	}
}

// decodeCart rejects data that does not describe a valid cart.
func decodeCart(data []byte) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, errors.Wrap(err, "unmarshal cart")
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	if lines == nil {
		lines = []domain.CartLine{}
	}
	return lines, nil
}

// validateLines checks every line against its quantity bounds and allows
// each sku once.
func validateLines(lines []domain.CartLine) error {
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if !l.Valid() {
			return errors.Wrapf(ErrInvalidCart, "line for sku %q (qty %d, max %d)", l.SKU, l.Qty, l.MaxQty)
		}
		if _, dup := seen[l.SKU]; dup {
			return errors.Wrapf(ErrInvalidCart, "duplicate sku %q", l.SKU)
		}
		seen[l.SKU] = struct{}{}
	}
	return nil
}

func indexOf(lines []domain.CartLine, sku string) int {
	for i := range lines {
		if lines[i].SKU == sku {
			return i
		}
	}
	return -1
}

func removeAt(lines []domain.CartLine, i int) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(lines)-1)
	out = append(out, lines[:i]...)
	return append(out, lines[i+1:]...)
}

// CountItems sums line quantities.
func CountItems(lines []domain.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Qty
	}
	return n
}

// BadgeLabel renders an item count for a compact badge: empty for an empty
// cart and "99+" past 99.
func BadgeLabel(count int) string {
	switch {
	case count <= 0:
		return ""
	case count > 99:
		return "99+"
	default:
		return strconv.Itoa(count)
	}
}
