package catalog

import "time"

// Vendor is a seller's storefront. Each platform user with the Vendor
// role owns at most one.
type Vendor struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Product struct {
	ID          string    `json:"id"`
	VendorID    string    `json:"vendorId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Images      []string  `json:"images"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StockLog records one inventory adjustment for audit purposes.
type StockLog struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"productId"`
	ChangeQty   int       `json:"changeQty"`
	Reason      string    `json:"reason"`
	PreviousQty int       `json:"previousQty"`
	NewQty      int       `json:"newQty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProductPage is a paginated listing response.
type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}
