package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/markato-labs/markato/internal/platform/httpx"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusShipped   Status = "SHIPPED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusPending, StatusCompleted, StatusShipped, StatusCancelled:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("%w: invalid order status %q", httpx.ErrValidation, raw)
	}
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Status          Status          `json:"status"`
	TotalAmount     float64         `json:"totalAmount"`
	ShippingAddress json.RawMessage `json:"shippingAddress"`
	Items           []Item          `json:"items"`
	Payment         *Payment        `json:"payment,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Item struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"orderId"`
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "CREDIT_CARD"
	MethodDebitCard  PaymentMethod = "DEBIT_CARD"
	MethodPaypal     PaymentMethod = "PAYPAL"
	MethodStripe     PaymentMethod = "STRIPE"
)

type Payment struct {
	ID            string        `json:"id"`
	OrderID       string        `json:"orderId"`
	Status        PaymentStatus `json:"status"`
	Amount        float64       `json:"amount"`
	Method        PaymentMethod `json:"method"`
	TransactionID string        `json:"transactionId"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// OrderPage is a paginated listing response.
type OrderPage struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}
