package domain

import "time"

// Order is the local record of an approved checkout.
type Order struct {
	ID            string      `json:"id"`
	Session       string      `json:"session"`
	ShopID        string      `json:"shopID"`
	Status        string      `json:"status"`
	PaymentMethod string      `json:"paymentMethod"`
	ProcessID     string      `json:"processID,omitempty"`
	TotalAmount   int64       `json:"totalAmount"`
	OrderItems    []OrderItem `json:"items"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

type OrderItem struct {
	ID              string `json:"id"`
	OrderID         string `json:"orderID"`
	SKU             string `json:"sku,omitempty"`
	Name            string `json:"name,omitempty"`
	Type            string `json:"type"`
	UnitAmount      int64  `json:"unitAmount"`
	Quantity        int32  `json:"quantity"`
	LineTotalAmount int64  `json:"lineTotalAmount"`
}

type CreateOrderRequest struct {
	Session       string
	ShopID        string
	PaymentMethod string
	ProcessID     string
	TotalAmount   int64
	// Offline orders were approved without the backend and stay pending
	// until the retry queue delivers them.
	Offline bool
	Items   []OrderItemRequest
}

type OrderItemRequest struct {
	SKU             string
	Name            string
	Type            string
	UnitAmount      int64
	Quantity        int32
	LineTotalAmount int64
}

type OrderResponse struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	TotalAmount int64     `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}
