package repository

import (
	"context"
	"fmt"

	"github.com/v1pung/url-alias/internal/models"
)

// ClickRepository журнал переходов и оконная статистика по ним
type ClickRepository interface {
	Record(ctx context.Context, linkID int64) error
	GetWindowStats(ctx context.Context, userID int64, isActive *bool) ([]models.LinkStats, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

// Record добавляет запись о переходе и инкрементирует счётчик ссылки.
// Обе записи выполняются в одной транзакции: либо фиксируются вместе,
// либо не фиксируются вовсе. Инкремент выражен относительно текущего
// значения в БД, поэтому конкурентные вызовы не теряют обновления.
func (r *clickRepository) Record(ctx context.Context, linkID int64) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO clicks (link_id) VALUES ($1)`, linkID); err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE links SET click_count = click_count + 1 WHERE id = $1`, linkID); err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit click: %w", err)
	}

	return nil
}

// GetWindowStats считает переходы за последний час и последние сутки по
// каждой ссылке пользователя. Оба окна считаются одним групповым запросом,
// чтобы "сейчас" было согласованным снимком для обоих интервалов.
func (r *clickRepository) GetWindowStats(ctx context.Context, userID int64, isActive *bool) ([]models.LinkStats, error) {
	query := `
		SELECT
			l.short_code,
			l.original_url,
			COALESCE(SUM(CASE WHEN c.clicked_at >= NOW() - INTERVAL '1 hour' THEN 1 ELSE 0 END), 0) AS last_hour_clicks,
			COALESCE(SUM(CASE WHEN c.clicked_at >= NOW() - INTERVAL '24 hours' THEN 1 ELSE 0 END), 0) AS last_day_clicks
		FROM links l
		LEFT JOIN clicks c ON c.link_id = l.id
		WHERE l.user_id = $1
	`
	args := []any{userID}

	if isActive != nil {
		args = append(args, *isActive)
		query += fmt.Sprintf(` AND l.is_active = $%d`, len(args))
	}

	query += `
		GROUP BY l.id, l.short_code, l.original_url
		ORDER BY last_day_clicks DESC, last_hour_clicks DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get window stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.LinkStats, 0)
	for rows.Next() {
		var stat models.LinkStats
		if err := rows.Scan(
			&stat.ShortCode,
			&stat.OriginalURL,
			&stat.LastHourClicks,
			&stat.LastDayClicks,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats = append(stats, stat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats: %w", err)
	}

	return stats, nil
}
