package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is the single canonical cart line shape: the stored row plus a
// snapshot of the live product it references. Prices here are always the
// product's current price, never a frozen one.
type CartItem struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Product   CartProduct     `json:"product"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}

type CartProduct struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
	Category string          `json:"category"`
	InStock  bool            `json:"in_stock"`
	Quantity int             `json:"quantity"`
	SellerID string          `json:"seller_id"`
}

type Cart struct {
	Items []CartItem      `json:"items"`
	Total decimal.Decimal `json:"total"`
}
