// Package store holds the order and product data collaborators: JSON files
// on disk, Postgres through bun, and an HTTP client for the data API.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
)

const (
	OrdersFile   = "CustomerOrders.json"
	ProductsFile = "ProductCatalog.json"
)

// FileStore serves orders and products from the two JSON data files.
type FileStore struct {
	dir string

	mu       sync.RWMutex
	orders   []contractx.Order
	products []contractx.Product
}

var _ contractx.DataSource = (*FileStore)(nil)

func NewFileStore(dir string) (*FileStore, error) {
	s := &FileStore{dir: dir}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads both files from disk.
func (s *FileStore) Reload() error {
	var orders []contractx.Order
	if err := readJSON(filepath.Join(s.dir, OrdersFile), &orders); err != nil {
		return err
	}
	var products []contractx.Product
	if err := readJSON(filepath.Join(s.dir, ProductsFile), &products); err != nil {
		return err
	}

	s.mu.Lock()
	s.orders = orders
	s.products = products
	s.mu.Unlock()
	return nil
}

func (s *FileStore) FindOrders(ctx context.Context, q contractx.OrderQuery) ([]contractx.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contractx.Order, 0, 1)
	for _, o := range s.orders {
		if q.Matches(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *FileStore) ListProducts(ctx context.Context, q contractx.ProductQuery) ([]contractx.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contractx.Product, 0, len(s.products))
	for _, p := range s.products {
		if q.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *FileStore) GetProduct(ctx context.Context, sku string) (contractx.Product, error) {
	if err := ctx.Err(); err != nil {
		return contractx.Product{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return contractx.Product{}, fmt.Errorf("%w: %s", contractx.ErrProductNotFound, sku)
}

// Snapshot returns copies of all records, used to seed other backends.
func (s *FileStore) Snapshot() ([]contractx.Order, []contractx.Product) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]contractx.Order(nil), s.orders...), append([]contractx.Product(nil), s.products...)
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", contractx.ErrDataUnavailable, path, err)
	}
	if err := sonic.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", contractx.ErrDataUnavailable, path, err)
	}
	return nil
}
