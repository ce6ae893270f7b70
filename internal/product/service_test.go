package product_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopcore/storefront-api/internal/product"
)

type mockProductRepository struct {
	listFunc     func(ctx context.Context, f product.Filter) ([]product.Product, error)
	getByIDFunc  func(ctx context.Context, id int64) (*product.Product, error)
	createFunc   func(ctx context.Context, p *product.Product) error
	updateFunc   func(ctx context.Context, p *product.Product) error
	deleteFunc   func(ctx context.Context, id int64) error
	maxPriceFunc func(ctx context.Context) (decimal.Decimal, error)
}

func (m *mockProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	return m.listFunc(ctx, f)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockProductRepository) Create(ctx context.Context, p *product.Product) error {
	return m.createFunc(ctx, p)
}

func (m *mockProductRepository) Update(ctx context.Context, p *product.Product) error {
	return m.updateFunc(ctx, p)
}

func (m *mockProductRepository) Delete(ctx context.Context, id int64) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockProductRepository) MaxPrice(ctx context.Context) (decimal.Decimal, error) {
	return m.maxPriceFunc(ctx)
}

func TestProductService_Create(t *testing.T) {
	tests := []struct {
		name      string
		product   product.Product
		wantErrIs error
	}{
		{
			name: "negative_price_rejected",
			product: product.Product{
				Name:  "Lamp",
				Price: decimal.RequireFromString("-0.01"),
				Stock: 5,
			},
			wantErrIs: product.ErrNegativePrice,
		},
		{
			name: "zero_price_accepted",
			product: product.Product{
				Name:  "Freebie",
				Price: decimal.Zero,
				Stock: 1,
			},
		},
		{
			name: "positive_price_accepted",
			product: product.Product{
				Name:  "Lamp",
				Price: decimal.RequireFromString("19.99"),
				Stock: 5,
			},
		},
		{
			name: "negative_stock_rejected",
			product: product.Product{
				Name:  "Lamp",
				Price: decimal.RequireFromString("19.99"),
				Stock: -1,
			},
			wantErrIs: product.ErrNegativeStock,
		},
		{
			name: "blank_name_rejected",
			product: product.Product{
				Name:  "   ",
				Price: decimal.RequireFromString("19.99"),
			},
			wantErrIs: product.ErrNameRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockProductRepository{
				createFunc: func(ctx context.Context, p *product.Product) error {
					p.ID = 1
					return nil
				},
			}
			svc := product.NewService(repo)

			created, err := svc.Create(context.Background(), &tt.product)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				assert.Nil(t, created)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(1), created.ID)
		})
	}
}

func TestProductService_Update_NotFound(t *testing.T) {
	repo := &mockProductRepository{
		updateFunc: func(ctx context.Context, p *product.Product) error {
			return product.ErrNotFound
		},
	}
	svc := product.NewService(repo)

	_, err := svc.Update(context.Background(), &product.Product{
		ID:    42,
		Name:  "Lamp",
		Price: decimal.RequireFromString("10"),
	})
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestProductService_List_PassesFilter(t *testing.T) {
	var gotFilter product.Filter
	repo := &mockProductRepository{
		listFunc: func(ctx context.Context, f product.Filter) ([]product.Product, error) {
			gotFilter = f
			return []product.Product{}, nil
		},
	}
	svc := product.NewService(repo)

	_, err := svc.List(context.Background(), product.Filter{InStock: true, Search: "lamp"})
	require.NoError(t, err)
	assert.True(t, gotFilter.InStock)
	assert.Equal(t, "lamp", gotFilter.Search)
}

func TestProductService_Info(t *testing.T) {
	products := []product.Product{
		{ID: 1, Name: "Lamp", Price: decimal.RequireFromString("19.99")},
		{ID: 2, Name: "Desk", Price: decimal.RequireFromString("120.00")},
	}
	repo := &mockProductRepository{
		listFunc: func(ctx context.Context, f product.Filter) ([]product.Product, error) {
			return products, nil
		},
		maxPriceFunc: func(ctx context.Context) (decimal.Decimal, error) {
			return decimal.RequireFromString("120.00"), nil
		},
	}
	svc := product.NewService(repo)

	info, err := svc.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, info.Count)
	assert.Len(t, info.Products, 2)
	assert.True(t, info.MaxPrice.Equal(decimal.RequireFromString("120.00")))
}

func TestProductService_Info_RepositoryError(t *testing.T) {
	repo := &mockProductRepository{
		listFunc: func(ctx context.Context, f product.Filter) ([]product.Product, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := product.NewService(repo)

	_, err := svc.Info(context.Background())
	assert.Error(t, err)
}
