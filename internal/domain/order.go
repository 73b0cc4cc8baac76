package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderConfirmed OrderStatus = "confirmed"
	OrderDelivered OrderStatus = "delivered"
)

// Order is a confirmed single item purchase. Items holds exactly one product snapshot
// and Total always equals that snapshot's price.
type Order struct {
	ID              string          `json:"id"`
	Items           []Product       `json:"items"`
	Total           decimal.Decimal `json:"total"`
	CreatedAt       time.Time       `json:"date"`
	Status          OrderStatus     `json:"status"`
	DeliveryPromise string          `json:"deliveryPromise"`
	CustomerName    string          `json:"customerName,omitempty"`
}

// NewOrder builds a confirmed order from a snapshot of p.
func NewOrder(id string, p Product, customerName string, at time.Time) Order {
	snap := p.Clone()
	return Order{
		ID:              id,
		Items:           []Product{snap},
		Total:           snap.Price,
		CreatedAt:       at,
		Status:          OrderConfirmed,
		DeliveryPromise: snap.Delivery.Promise(),
		CustomerName:    customerName,
	}
}

// Clone copies the order including its item snapshots.
func (o Order) Clone() Order {
	out := o
	out.Items = make([]Product, len(o.Items))
	for i, it := range o.Items {
		out.Items[i] = it.Clone()
	}
	return out
}
