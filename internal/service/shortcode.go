package service

import (
	"github.com/google/uuid"
)

// GenerateShortCode возвращает короткий код заданной длины — префикс
// строкового представления UUIDv4. Уникальность кода генератор не
// гарантирует: коллизии разрешает constraint уникальности в хранилище.
func GenerateShortCode(length int) string {
	return uuid.NewString()[:length]
}
