package models

import "time"

type Booking struct {
	ID                 int64      `json:"id"`
	HotelID            int64      `json:"hotel_id"`
	RoomID             int64      `json:"room_id"`
	RoomTypeID         int64      `json:"room_type_id"`
	GuestID            *int64     `json:"guest_id,omitempty"`
	CheckIn            time.Time  `json:"check_in"`
	CheckOut           time.Time  `json:"check_out"`
	NumAdults          int        `json:"num_adults"`
	NumChildren        int        `json:"num_children"`
	Status             string     `json:"status"` // pending, confirmed, checked_in, checked_out, cancelled, no_show, expired
	PaymentStatus      string     `json:"payment_status"`
	PaymentReference   string     `json:"payment_reference,omitempty"`
	TotalPriceCents    int64      `json:"total_price_cents"`
	TaxCents           int64      `json:"tax_cents"`
	Currency           string     `json:"currency"`
	AppliedRatePlanID  *int64     `json:"applied_rate_plan_id,omitempty"`
	SoftHoldExpiresAt  *time.Time `json:"soft_hold_expires_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	ActualCheckInAt    *time.Time `json:"actual_check_in_at,omitempty"`
	ActualCheckOutAt   *time.Time `json:"actual_check_out_at,omitempty"`
	ConfirmationCode   string     `json:"confirmation_code"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int64      `json:"version"`
}

// Nights возвращает количество ночей в интервале [check_in, check_out).
func (b *Booking) Nights() int {
	return NightsBetween(b.CheckIn, b.CheckOut)
}

// NightsBetween counts calendar nights between two dates, rounding up any
// fractional remainder. Both arguments are expected to be date-only values.
func NightsBetween(checkIn, checkOut time.Time) int {
	hours := checkOut.Sub(checkIn).Hours()
	nights := int(hours / 24)
	if hours > float64(nights)*24 {
		nights++
	}
	return nights
}

// Overlaps reports whether the booking's stay interval intersects
// [checkIn, checkOut) using half-open semantics: a booking that checks out
// on the day another checks in does not overlap.
func (b *Booking) Overlaps(checkIn, checkOut time.Time) bool {
	return b.CheckIn.Before(checkOut) && b.CheckOut.After(checkIn)
}
