package models

import "time"

// RatePlan ценовое переопределение для типа номера. Несколько планов могут
// действовать одновременно; побеждает полностью подходящий план с наибольшим
// приоритетом (при равенстве — объявленный раньше).
type RatePlan struct {
	ID                    int64          `json:"id" yaml:"id"`
	RoomTypeID            int64          `json:"room_type_id" yaml:"room_type_id"`
	Name                  string         `json:"name" yaml:"name"`
	PriceCents            int64          `json:"price_cents" yaml:"price_cents"`
	Priority              int            `json:"priority" yaml:"priority"`
	ValidFrom             time.Time      `json:"valid_from" yaml:"valid_from"`
	ValidTo               time.Time      `json:"valid_to" yaml:"valid_to"`
	MinStayNights         int            `json:"min_stay_nights" yaml:"min_stay_nights"`
	MaxStayNights         *int           `json:"max_stay_nights,omitempty" yaml:"max_stay_nights"`
	MinAdvanceBookingDays int            `json:"min_advance_booking_days" yaml:"min_advance_booking_days"`
	MaxAdvanceBookingDays *int           `json:"max_advance_booking_days,omitempty" yaml:"max_advance_booking_days"`
	AllowedWeekdays       []time.Weekday `json:"allowed_weekdays,omitempty" yaml:"allowed_weekdays"`
	Refundable            bool           `json:"refundable" yaml:"refundable"`
	IsActive              bool           `json:"is_active" yaml:"is_active"`
	CreatedAt             time.Time      `json:"created_at" yaml:"-"`
}

// AllowsWeekday reports whether checkIn's weekday is permitted. An empty
// allowed set means the plan places no weekday restriction.
func (p *RatePlan) AllowsWeekday(day time.Weekday) bool {
	if len(p.AllowedWeekdays) == 0 {
		return true
	}
	for _, d := range p.AllowedWeekdays {
		if d == day {
			return true
		}
	}
	return false
}
