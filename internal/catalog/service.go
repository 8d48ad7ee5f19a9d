package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/markato-labs/markato/internal/identity"
	"github.com/markato-labs/markato/internal/platform/httpx"
)

type Service struct {
	repo  Repository
	cache *Cache
}

func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// foldSearch lowercases the term and strips diacritics so "Café"
// matches "cafe".
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldSearch(term string) string {
	folded, _, err := transform.String(foldTransformer, strings.ToLower(strings.TrimSpace(term)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(term))
	}
	return folded
}

type ListProductsInput struct {
	Search   string
	Category string
	VendorID string
	MinPrice *float64
	MaxPrice *float64
	InStock  bool
	Page     int
	Limit    int
}

func (in *ListProductsInput) normalize() {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 || in.Limit > 100 {
		in.Limit = 20
	}
}

// ListProducts serves the public storefront listing through the cache.
// The listing and its total are fetched concurrently on a miss.
func (s *Service) ListProducts(ctx context.Context, in ListProductsInput) (*ProductPage, error) {
	in.normalize()
	filter := ProductFilter{
		Search:   foldSearch(in.Search),
		Category: in.Category,
		VendorID: in.VendorID,
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		InStock:  in.InStock,
	}

	priceKey := func(p *float64) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprint(*p)
	}
	key, err := s.cache.BuildKey(ctx, "catalog", "products",
		filter.Search, filter.Category, filter.VendorID,
		priceKey(filter.MinPrice), priceKey(filter.MaxPrice), fmt.Sprint(filter.InStock),
		fmt.Sprint(in.Page), fmt.Sprint(in.Limit))
	if err != nil {
		return nil, err
	}

	var page ProductPage
	err = s.cache.FetchJSON(ctx, key, &page, func(ctx context.Context) (interface{}, error) {
		var (
			products []Product
			total    int
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			products, err = s.repo.ListProducts(gctx, filter, in.Limit, (in.Page-1)*in.Limit)
			return err
		})
		g.Go(func() error {
			var err error
			total, err = s.repo.CountProducts(gctx, filter)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return &ProductPage{Products: products, Total: total, Page: in.Page, Limit: in.Limit}, nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.repo.FindProduct(ctx, id)
}

type CreateProductInput struct {
	Name        string
	Description string
	Category    string
	Price       float64
	Stock       int
	Images      []string
}

// CreateProduct adds a product to the calling vendor's own store. The
// caller must already have a vendor profile, admins included.
func (s *Service) CreateProduct(ctx context.Context, id identity.Identity, in CreateProductInput) (*Product, error) {
	if err := identity.RequireRoles(id, identity.RoleVendor, identity.RoleAdmin); err != nil {
		return nil, err
	}
	vendor, err := s.repo.FindVendorByUser(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	product := Product{
		ID:          uuid.NewString(),
		VendorID:    vendor.ID,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Stock:       in.Stock,
		Images:      in.Images,
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	_ = s.cache.Bump(ctx)
	return s.repo.FindProduct(ctx, product.ID)
}

func (s *Service) UpdateProduct(ctx context.Context, id identity.Identity, productID string, updates ProductUpdates) (*Product, error) {
	if err := s.authorizeProduct(ctx, id, productID); err != nil {
		return nil, err
	}
	product, err := s.repo.UpdateProduct(ctx, productID, updates)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Bump(ctx)
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id identity.Identity, productID string) error {
	if err := s.authorizeProduct(ctx, id, productID); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	_ = s.cache.Bump(ctx)
	return nil
}

// authorizeProduct resolves the product's owning vendor and enforces
// owner-or-admin. A missing product surfaces as not found before any
// permission check.
func (s *Service) authorizeProduct(ctx context.Context, id identity.Identity, productID string) error {
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return err
	}
	vendor, err := s.repo.FindVendor(ctx, product.VendorID)
	if err != nil {
		return err
	}
	return identity.OwnerOrAdmin(id, vendor.UserID)
}

type CreateVendorInput struct {
	Name        string
	Description string
}

// CreateVendor opens a storefront for the calling user. Any
// authenticated user may create one; the unique user_id constraint
// keeps it to a single profile per account.
func (s *Service) CreateVendor(ctx context.Context, id identity.Identity, in CreateVendorInput) (*Vendor, error) {
	vendor := Vendor{
		ID:          uuid.NewString(),
		UserID:      id.UserID,
		Name:        in.Name,
		Description: in.Description,
	}
	if err := s.repo.CreateVendor(ctx, vendor); err != nil {
		return nil, err
	}
	return s.repo.FindVendor(ctx, vendor.ID)
}

func (s *Service) GetVendor(ctx context.Context, id string) (*Vendor, error) {
	return s.repo.FindVendor(ctx, id)
}

func (s *Service) ListVendors(ctx context.Context) ([]Vendor, error) {
	return s.repo.ListVendors(ctx)
}

func (s *Service) GetMyStore(ctx context.Context, id identity.Identity) (*Vendor, error) {
	return s.repo.FindVendorByUser(ctx, id.UserID)
}

type UpdateVendorInput struct {
	Name        *string
	Description *string
}

func (s *Service) UpdateMyStore(ctx context.Context, id identity.Identity, in UpdateVendorInput) (*Vendor, error) {
	vendor, err := s.repo.FindVendorByUser(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return s.repo.UpdateVendor(ctx, vendor.ID, in.Name, in.Description)
}

type StockView struct {
	ProductID string `json:"productId"`
	Stock     int    `json:"stock"`
}

func (s *Service) GetStock(ctx context.Context, id identity.Identity, productID string) (*StockView, error) {
	if err := s.authorizeProduct(ctx, id, productID); err != nil {
		return nil, err
	}
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &StockView{ProductID: product.ID, Stock: product.Stock}, nil
}

type AdjustStockInput struct {
	Change int
	Reason string
}

// AdjustStock applies an inventory delta and writes the audit log in
// one transaction. Stock can never go negative.
func (s *Service) AdjustStock(ctx context.Context, id identity.Identity, productID string, in AdjustStockInput) (*Product, error) {
	if err := s.authorizeProduct(ctx, id, productID); err != nil {
		return nil, err
	}

	var updated *Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		product, err := tx.AdjustStock(ctx, productID, in.Change)
		if err != nil {
			return err
		}
		if product.Stock < 0 {
			return fmt.Errorf("%w: insufficient stock", httpx.ErrValidation)
		}
		updated = product
		return tx.CreateStockLog(ctx, StockLog{
			ID:          uuid.NewString(),
			ProductID:   productID,
			ChangeQty:   in.Change,
			Reason:      in.Reason,
			PreviousQty: product.Stock - in.Change,
			NewQty:      product.Stock,
		})
	})
	if err != nil {
		return nil, err
	}
	_ = s.cache.Bump(ctx)
	return updated, nil
}

func (s *Service) StockLogs(ctx context.Context, id identity.Identity, productID string) ([]StockLog, error) {
	if err := s.authorizeProduct(ctx, id, productID); err != nil {
		return nil, err
	}
	return s.repo.ListStockLogs(ctx, productID)
}
