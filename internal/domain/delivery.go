package domain

import (
	"fmt"
	"time"
)

// Delivery is the shipping commitment of a listing.
type Delivery string

const (
	DeliveryNextDay Delivery = "next-day"
	DeliveryTwoDay  Delivery = "two-day"
)

// ParseDelivery accepts the enumeration values plus the day counts "1" and "2".
func ParseDelivery(v string) (Delivery, error) {
	switch v {
	case string(DeliveryNextDay), "1":
		return DeliveryNextDay, nil
	case string(DeliveryTwoDay), "2":
		return DeliveryTwoDay, nil
	}
	return "", fmt.Errorf("unknown delivery commitment %q", v)
}

func (d Delivery) Valid() bool {
	return d == DeliveryNextDay || d == DeliveryTwoDay
}

// Days is the number of days until arrival.
func (d Delivery) Days() int {
	if d == DeliveryNextDay {
		return 1
	}
	return 2
}

// Label is the badge text shown on product cards.
func (d Delivery) Label() string {
	if d == DeliveryNextDay {
		return "Next Day"
	}
	return "2-Day"
}

// Promise is the human readable promise recorded on orders.
func (d Delivery) Promise() string {
	if d == DeliveryNextDay {
		return "Tomorrow"
	}
	return "In 2 days"
}

// EstimatedArrival adds the delivery days to now.
func (d Delivery) EstimatedArrival(now time.Time) time.Time {
	return now.AddDate(0, 0, d.Days())
}
