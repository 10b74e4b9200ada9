package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kasirkita/backend-kasir/internal/common"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

type storeProvider interface {
	List(ctx context.Context, tenantID string, params ListParams) ([]Product, int64, error)
	GetByID(ctx context.Context, tenantID, id string) (Product, error)
	GetByBarcode(ctx context.Context, tenantID, barcode string) (Product, error)
	GetBySKU(ctx context.Context, tenantID, sku string) (Product, error)
	Create(ctx context.Context, tenantID string, p Product) (Product, error)
	Update(ctx context.Context, tenantID string, p Product) (Product, error)
}

// Service orchestrates product queries and caching.
type Service struct {
	store        storeProvider
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        storeProvider
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, defaultLimit: defaultLimit, maxLimit: maxLimit}, nil
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "halaman harus bilangan positif", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit harus bilangan positif", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	return params, nil
}

// ListProducts returns a filtered page of products with caching for the default view.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key, cacheable := s.listCacheKey(ctx, params)
	if cacheable {
		var cached cachedList
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return ProductListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	tenantID := mustTenant(ctx)
	items, total, err := s.store.List(ctx, tenantID, params)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	if items == nil {
		items = []Product{}
	}
	if cacheable {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: total})
	}
	return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, badRequest("id", "id produk wajib diisi", nil)
	}
	p, err := s.store.GetByID(ctx, mustTenant(ctx), id)
	if err != nil {
		return Product{}, wrapLookup(err)
	}
	return p, nil
}

// GetByBarcode resolves a product from a scanned barcode.
func (s *Service) GetByBarcode(ctx context.Context, barcode string) (Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return Product{}, badRequest("barcode", "barcode wajib diisi", nil)
	}
	p, err := s.store.GetByBarcode(ctx, mustTenant(ctx), barcode)
	if err != nil {
		return Product{}, wrapLookup(err)
	}
	return p, nil
}

// CreateProduct inserts a new product and busts the list cache.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	tenantID := mustTenant(ctx)
	created, err := s.store.Create(ctx, tenantID, p)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	_ = s.cache.Invalidate(ctx, tenant.PrefixKey(tenantID, listCacheSuffix))
	return created, nil
}

// UpdateProduct replaces product fields and busts the list cache.
func (s *Service) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	tenantID := mustTenant(ctx)
	updated, err := s.store.Update(ctx, tenantID, p)
	if err != nil {
		return Product{}, wrapLookup(err)
	}
	_ = s.cache.Invalidate(ctx, tenant.PrefixKey(tenantID, listCacheSuffix))
	return updated, nil
}

type cachedList struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
}

const listCacheSuffix = "catalog:products:list:default"

func (s *Service) listCacheKey(ctx context.Context, params ListParams) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	if params.Page != 1 || params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Query != "" || params.Category != "" {
		return "", false
	}
	return tenant.PrefixKey(mustTenant(ctx), listCacheSuffix), true
}

func mustTenant(ctx context.Context) string {
	id, _ := tenant.FromContext(ctx)
	return id
}

func wrapLookup(err error) error {
	if errors.Is(err, ErrProductNotFound) {
		return &common.AppError{Code: "NOT_FOUND", Message: "produk tidak ditemukan", HTTPStatus: http.StatusNotFound, Err: err}
	}
	return fmt.Errorf("catalog lookup: %w", err)
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
