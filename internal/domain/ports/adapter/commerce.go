package adapter

import (
	"context"

	"telegram-shop-bot/internal/domain/model"
)

// CommerceClient is the port over the commerce backend (catalog, pricing,
// inventory, carts, customers). Implementations authenticate themselves;
// callers never see tokens. Every method returns *domain.UpstreamError on a
// non-2xx answer and nothing is retried here — retry policy belongs to the
// turn that called.
type CommerceClient interface {
	ListProducts(ctx context.Context) ([]model.ProductRef, error)
	GetProduct(ctx context.Context, productID string) (*model.ProductDetail, error)
	GetPriceBook(ctx context.Context) ([]model.PriceEntry, error)
	GetImageURL(ctx context.Context, relPath string) (string, error)
	GetStock(ctx context.Context, productID string) (int, error)

	AddToCart(ctx context.Context, cartID string, productID string, quantity int) error
	GetCartAndTotal(ctx context.Context, cartID string) ([]model.CartLine, string, error)
	RemoveFromCart(ctx context.Context, cartID, itemID string) error

	CreateCustomer(ctx context.Context, email string) error
}
