package service

import (
	"crypto/rand"
	"fmt"

	"hotelier/internal/models"
)

// codeAlphabet без визуально похожих символов (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// newConfirmationCode генерирует короткий человекочитаемый код. Уникальность
// в рамках отеля обеспечивает ограничение в хранилище; на конфликт отвечаем
// повторной генерацией.
func newConfirmationCode() (string, error) {
	buf := make([]byte, models.ConfirmationCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate confirmation code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
