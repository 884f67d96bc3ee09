package models

import (
	"time"
)

type Link struct {
	ID          int64     `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	UserID      int64     `json:"-"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ClickCount  int64     `json:"click_count"`
}

// ListLinksInput параметры выборки ссылок пользователя
type ListLinksInput struct {
	UserID   int64
	IsActive *bool
	Limit    int
	Offset   int
}

// LinkStats одна строка оконной статистики по ссылке
type LinkStats struct {
	ShortCode      string `json:"-"`
	Link           string `json:"link"`
	OriginalURL    string `json:"orig_link"`
	LastHourClicks int64  `json:"last_hour_clicks"`
	LastDayClicks  int64  `json:"last_day_clicks"`
}
