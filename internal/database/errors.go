package database

import "errors"

var (
	// ErrNotFound — бронирование, номер или тип номера не существует.
	ErrNotFound = errors.New("record not found")

	// ErrNoAvailability — на запрошенные даты не осталось свободных номеров.
	// Возвращается и при проигрыше гонки за последний номер.
	ErrNoAvailability = errors.New("no rooms available for the requested dates")

	// ErrVersionConflict — конкурирующий переход уже изменил бронирование.
	ErrVersionConflict = errors.New("booking was modified concurrently, reload and retry")

	// ErrDuplicateConfirmationCode — код подтверждения уже занят в отеле.
	ErrDuplicateConfirmationCode = errors.New("confirmation code already exists for hotel")
)
