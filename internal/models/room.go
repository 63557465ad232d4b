package models

import "time"

// RoomType категория номеров в рамках одного отеля.
type RoomType struct {
	ID                int64     `json:"id" yaml:"id"`
	HotelID           int64     `json:"hotel_id" yaml:"hotel_id"`
	Name              string    `json:"name" yaml:"name"`
	BasePriceCents    int64     `json:"base_price_cents" yaml:"base_price_cents"`
	Currency          string    `json:"currency" yaml:"currency"`
	MaxAdultOccupancy int       `json:"max_adult_occupancy" yaml:"max_adult_occupancy"`
	MaxChildOccupancy int       `json:"max_child_occupancy" yaml:"max_child_occupancy"`
	IsActive          bool      `json:"is_active" yaml:"is_active"`
	CreatedAt         time.Time `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}

// Room физический номер. Принадлежит ровно одному типу и одному отелю.
type Room struct {
	ID         int64     `json:"id" yaml:"id"`
	HotelID    int64     `json:"hotel_id" yaml:"hotel_id"`
	RoomTypeID int64     `json:"room_type_id" yaml:"room_type_id"`
	RoomNumber string    `json:"room_number" yaml:"room_number"`
	Status     string    `json:"status" yaml:"status"` // available, maintenance, out_of_service
	IsActive   bool      `json:"is_active" yaml:"is_active"`
	CreatedAt  time.Time `json:"created_at" yaml:"-"`
}

// Availability снимок доступности типа номера на один день.
type Availability struct {
	Date       time.Time `json:"date"`
	RoomTypeID int64     `json:"room_type_id"`
	Booked     int64     `json:"booked"`
	Available  int64     `json:"available"`
	TotalRooms int64     `json:"total_rooms"`
}
