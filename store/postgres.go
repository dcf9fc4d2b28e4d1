package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/outfitters-agent/agent/contract"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" split_words:"true" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"10s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"10"`
}

type orderRow struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	OrderNumber     string   `bun:"order_number,pk"`
	CustomerName    string   `bun:"customer_name,notnull"`
	Email           string   `bun:"email,notnull"`
	ProductsOrdered []string `bun:"products_ordered,array"`
	Status          string   `bun:"status,notnull"`
	TrackingNumber  string   `bun:"tracking_number,nullzero"`
}

type productRow struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	SKU         string   `bun:"sku,pk"`
	ProductName string   `bun:"product_name,notnull"`
	Inventory   int      `bun:"inventory,notnull"`
	Description string   `bun:"description"`
	Tags        []string `bun:"tags,array"`
}

// PostgresStore serves orders and products from Postgres.
type PostgresStore struct {
	db *bun.DB
}

var _ contractx.DataSource = (*PostgresStore)(nil)

func OpenPostgres(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", contractx.ErrValidation)
	}

	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.DialTimeout > 0 {
		opts = append(opts, pgdriver.WithDialTimeout(cfg.DialTimeout))
	}
	if cfg.ReadTimeout > 0 {
		opts = append(opts, pgdriver.WithReadTimeout(cfg.ReadTimeout))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return NewPostgresStore(bun.NewDB(sqldb, pgdialect.New())), nil
}

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateTables creates the orders and products tables when missing.
func (s *PostgresStore) CreateTables(ctx context.Context) error {
	for _, model := range []any{(*orderRow)(nil), (*productRow)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Seed upserts the given records in one transaction.
func (s *PostgresStore) Seed(ctx context.Context, orders []contractx.Order, products []contractx.Product) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(orders) > 0 {
			rows := make([]orderRow, 0, len(orders))
			for _, o := range orders {
				rows = append(rows, toOrderRow(o))
			}
			if _, err := upsertOrders(tx.NewInsert(), &rows).Exec(ctx); err != nil {
				return fmt.Errorf("seed orders: %w", err)
			}
		}
		if len(products) > 0 {
			rows := make([]productRow, 0, len(products))
			for _, p := range products {
				rows = append(rows, toProductRow(p))
			}
			if _, err := upsertProducts(tx.NewInsert(), &rows).Exec(ctx); err != nil {
				return fmt.Errorf("seed products: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) FindOrders(ctx context.Context, q contractx.OrderQuery) ([]contractx.Order, error) {
	var rows []orderRow
	if err := s.ordersQuery(q, &rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: select orders: %v", contractx.ErrDataUnavailable, err)
	}
	out := make([]contractx.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toOrder())
	}
	return out, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, q contractx.ProductQuery) ([]contractx.Product, error) {
	var rows []productRow
	if err := s.productsQuery(q, &rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: select products: %v", contractx.ErrDataUnavailable, err)
	}
	out := make([]contractx.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toProduct())
	}
	return out, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, sku string) (contractx.Product, error) {
	var row productRow
	err := s.db.NewSelect().Model(&row).Where("p.sku = ?", sku).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.Product{}, fmt.Errorf("%w: %s", contractx.ErrProductNotFound, sku)
	}
	if err != nil {
		return contractx.Product{}, fmt.Errorf("%w: select product: %v", contractx.ErrDataUnavailable, err)
	}
	return row.toProduct(), nil
}

func (s *PostgresStore) ordersQuery(q contractx.OrderQuery, dest *[]orderRow) *bun.SelectQuery {
	sel := s.db.NewSelect().Model(dest).OrderExpr("o.order_number ASC")
	if email := strings.TrimSpace(q.Email); email != "" {
		sel = sel.Where("lower(o.email) = lower(?)", email)
	}
	if number := strings.TrimSpace(q.OrderNumber); number != "" {
		sel = sel.Where("o.order_number = ?", number)
	}
	return sel
}

func (s *PostgresStore) productsQuery(q contractx.ProductQuery, dest *[]productRow) *bun.SelectQuery {
	sel := s.db.NewSelect().Model(dest).OrderExpr("p.sku ASC")
	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
		sel = sel.WhereGroup(" AND ", func(g *bun.SelectQuery) *bun.SelectQuery {
			return g.Where("lower(p.product_name) LIKE ?", pattern).
				WhereOr("lower(p.description) LIKE ?", pattern).
				WhereOr("lower(p.sku) LIKE ?", pattern)
		})
	}
	if len(q.Tags) > 0 {
		sel = sel.Where("p.tags && ?", pgdialect.Array(q.Tags))
	}
	if q.MinInventory != nil {
		sel = sel.Where("p.inventory >= ?", *q.MinInventory)
	}
	return sel
}

func upsertOrders(ins *bun.InsertQuery, rows *[]orderRow) *bun.InsertQuery {
	return ins.Model(rows).
		On("CONFLICT (order_number) DO UPDATE").
		Set("customer_name = EXCLUDED.customer_name").
		Set("email = EXCLUDED.email").
		Set("products_ordered = EXCLUDED.products_ordered").
		Set("status = EXCLUDED.status").
		Set("tracking_number = EXCLUDED.tracking_number")
}

func upsertProducts(ins *bun.InsertQuery, rows *[]productRow) *bun.InsertQuery {
	return ins.Model(rows).
		On("CONFLICT (sku) DO UPDATE").
		Set("product_name = EXCLUDED.product_name").
		Set("inventory = EXCLUDED.inventory").
		Set("description = EXCLUDED.description").
		Set("tags = EXCLUDED.tags")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func toOrderRow(o contractx.Order) orderRow {
	return orderRow{
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.CustomerName,
		Email:           o.Email,
		ProductsOrdered: o.ProductsOrdered,
		Status:          string(o.Status),
		TrackingNumber:  o.TrackingNumber,
	}
}

func (r orderRow) toOrder() contractx.Order {
	return contractx.Order{
		CustomerName:    r.CustomerName,
		Email:           r.Email,
		OrderNumber:     r.OrderNumber,
		ProductsOrdered: r.ProductsOrdered,
		Status:          contractx.OrderStatus(r.Status),
		TrackingNumber:  r.TrackingNumber,
	}
}

func toProductRow(p contractx.Product) productRow {
	return productRow{
		SKU:         p.SKU,
		ProductName: p.ProductName,
		Inventory:   p.Inventory,
		Description: p.Description,
		Tags:        p.Tags,
	}
}

func (r productRow) toProduct() contractx.Product {
	return contractx.Product{
		ProductName: r.ProductName,
		SKU:         r.SKU,
		Inventory:   r.Inventory,
		Description: r.Description,
		Tags:        r.Tags,
	}
}
