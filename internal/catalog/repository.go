package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markato-labs/markato/internal/platform/db"
	"github.com/markato-labs/markato/internal/platform/httpx"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	CreateVendor(ctx context.Context, vendor Vendor) error
	FindVendor(ctx context.Context, id string) (*Vendor, error)
	FindVendorByUser(ctx context.Context, userID string) (*Vendor, error)
	ListVendors(ctx context.Context) ([]Vendor, error)
	UpdateVendor(ctx context.Context, id string, name, description *string) (*Vendor, error)

	CreateProduct(ctx context.Context, product Product) error
	FindProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter, limit, offset int) ([]Product, error)
	CountProducts(ctx context.Context, filter ProductFilter) (int, error)
	UpdateProduct(ctx context.Context, id string, updates ProductUpdates) (*Product, error)
	DeleteProduct(ctx context.Context, id string) error

	AdjustStock(ctx context.Context, productID string, change int) (*Product, error)
	CreateStockLog(ctx context.Context, log StockLog) error
	ListStockLogs(ctx context.Context, productID string) ([]StockLog, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const vendorColumns = "id, user_id, name, description, created_at, updated_at"

func (r *repository) CreateVendor(ctx context.Context, vendor Vendor) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO vendors (id, user_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())`,
		vendor.ID, vendor.UserID, vendor.Name, vendor.Description)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: vendor already exists for this user", httpx.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("catalog: create vendor: %w", err)
	}
	return nil
}

func (r *repository) FindVendor(ctx context.Context, id string) (*Vendor, error) {
	row := r.db.QueryRow(ctx, "SELECT "+vendorColumns+" FROM vendors WHERE id = $1", id)
	return scanVendor(row)
}

func (r *repository) FindVendorByUser(ctx context.Context, userID string) (*Vendor, error) {
	row := r.db.QueryRow(ctx, "SELECT "+vendorColumns+" FROM vendors WHERE user_id = $1", userID)
	return scanVendor(row)
}

func (r *repository) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := r.db.Query(ctx, "SELECT "+vendorColumns+" FROM vendors ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("catalog: list vendors: %w", err)
	}
	defer rows.Close()

	vendors := make([]Vendor, 0)
	for rows.Next() {
		var v Vendor
		if err := rows.Scan(&v.ID, &v.UserID, &v.Name, &v.Description, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

func (r *repository) UpdateVendor(ctx context.Context, id string, name, description *string) (*Vendor, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE vendors
		SET name = COALESCE($2, name), description = COALESCE($3, description), updated_at = now()
		WHERE id = $1
		RETURNING `+vendorColumns,
		id, name, description)
	return scanVendor(row)
}

func scanVendor(row pgx.Row) (*Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.UserID, &v.Name, &v.Description, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: vendor", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: scan vendor: %w", err)
	}
	return &v, nil
}

// ProductFilter narrows public listings. Zero values mean "no filter".
type ProductFilter struct {
	Search   string
	Category string
	VendorID string
	MinPrice *float64
	MaxPrice *float64
	InStock  bool
}

// ProductUpdates carries optional fields for a partial update.
type ProductUpdates struct {
	Name        *string
	Description *string
	Category    *string
	Price       *float64
	Images      []string
}

const productColumns = "id, vendor_id, name, description, category, price, stock, images, created_at, updated_at"

func (r *repository) CreateProduct(ctx context.Context, product Product) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, vendor_id, name, name_folded, description, category, price, stock, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`,
		product.ID, product.VendorID, product.Name, foldSearch(product.Name), product.Description,
		product.Category, product.Price, product.Stock, product.Images)
	if err != nil {
		return fmt.Errorf("catalog: create product: %w", err)
	}
	return nil
}

func (r *repository) FindProduct(ctx context.Context, id string) (*Product, error) {
	row := r.db.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	return scanProduct(row)
}

func productWhere(filter ProductFilter) (string, []interface{}) {
	clauses := []string{"1=1"}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Search != "" {
		// name_folded holds the lowercased, diacritic-stripped name so
		// "cafe" matches a product stored as "Café".
		clauses = append(clauses, "name_folded LIKE '%' || "+arg(foldSearch(filter.Search))+" || '%'")
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = "+arg(filter.Category))
	}
	if filter.VendorID != "" {
		clauses = append(clauses, "vendor_id = "+arg(filter.VendorID))
	}
	if filter.MinPrice != nil {
		clauses = append(clauses, "price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		clauses = append(clauses, "price <= "+arg(*filter.MaxPrice))
	}
	if filter.InStock {
		clauses = append(clauses, "stock > 0")
	}
	return strings.Join(clauses, " AND "), args
}

func (r *repository) ListProducts(ctx context.Context, filter ProductFilter, limit, offset int) ([]Product, error) {
	where, args := productWhere(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s FROM products
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.VendorID, &p.Name, &p.Description, &p.Category,
			&p.Price, &p.Stock, &p.Images, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *repository) CountProducts(ctx context.Context, filter ProductFilter) (int, error) {
	where, args := productWhere(filter)
	var total int
	err := r.db.QueryRow(ctx, "SELECT count(*) FROM products WHERE "+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("catalog: count products: %w", err)
	}
	return total, nil
}

func (r *repository) UpdateProduct(ctx context.Context, id string, updates ProductUpdates) (*Product, error) {
	var folded *string
	if updates.Name != nil {
		f := foldSearch(*updates.Name)
		folded = &f
	}
	row := r.db.QueryRow(ctx, `
		UPDATE products
		SET name = COALESCE($2, name),
		    name_folded = COALESCE($3, name_folded),
		    description = COALESCE($4, description),
		    category = COALESCE($5, category),
		    price = COALESCE($6, price),
		    images = COALESCE($7, images),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, updates.Name, folded, updates.Description, updates.Category, updates.Price, updates.Images)
	return scanProduct(row)
}

func (r *repository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("catalog: delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product", httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) AdjustStock(ctx context.Context, productID string, change int) (*Product, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		productID, change)
	return scanProduct(row)
}

func (r *repository) CreateStockLog(ctx context.Context, log StockLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO stock_logs (id, product_id, change_qty, reason, previous_qty, new_qty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		log.ID, log.ProductID, log.ChangeQty, log.Reason, log.PreviousQty, log.NewQty)
	if err != nil {
		return fmt.Errorf("catalog: create stock log: %w", err)
	}
	return nil
}

func (r *repository) ListStockLogs(ctx context.Context, productID string) ([]StockLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, product_id, change_qty, reason, previous_qty, new_qty, created_at
		FROM stock_logs
		WHERE product_id = $1
		ORDER BY created_at DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list stock logs: %w", err)
	}
	defer rows.Close()

	logs := make([]StockLog, 0)
	for rows.Next() {
		var l StockLog
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ChangeQty, &l.Reason, &l.PreviousQty, &l.NewQty, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan stock log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.VendorID, &p.Name, &p.Description, &p.Category,
		&p.Price, &p.Stock, &p.Images, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: product", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: scan product: %w", err)
	}
	return &p, nil
}
