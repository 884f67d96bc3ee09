package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/v1pung/url-alias/internal/models"
)

var (
	ErrLinkNotFound  = errors.New("link not found")
	ErrCodeExists    = errors.New("short code already exists")
	ErrInvalidParams = errors.New("invalid pagination parameters")
)

// LinkRepository хранилище ссылок. Уникальность короткого кода и
// атомарность многошаговых операций гарантируются на уровне БД.
type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetByShortCode(ctx context.Context, code string, userID *int64) (*models.Link, error)
	GetAll(ctx context.Context, input models.ListLinksInput) ([]models.Link, error)
	Deactivate(ctx context.Context, code string, userID int64) (bool, error)
	SweepExpired(ctx context.Context) (int64, error)
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (original_url, short_code, user_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, click_count
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.OriginalURL,
		link.ShortCode,
		link.UserID,
		link.ExpiresAt,
	).Scan(&link.ID, &link.IsActive, &link.CreatedAt, &link.ClickCount)

	if err != nil {
		// Гонка двух вставок с одинаковым кодом разрешается
		// constraint-ом уникальности, а не предварительной проверкой
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetByShortCode возвращает ссылку по коду. При userID != nil выборка
// дополнительно фильтруется по владельцу (приватные операции).
func (r *linkRepository) GetByShortCode(ctx context.Context, code string, userID *int64) (*models.Link, error) {
	query := `
		SELECT id, original_url, short_code, user_id, is_active, created_at, expires_at, click_count
		FROM links
		WHERE short_code = $1
	`
	args := []any{code}

	if userID != nil {
		query += ` AND user_id = $2`
		args = append(args, *userID)
	}

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&link.ID,
		&link.OriginalURL,
		&link.ShortCode,
		&link.UserID,
		&link.IsActive,
		&link.CreatedAt,
		&link.ExpiresAt,
		&link.ClickCount,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) GetAll(ctx context.Context, input models.ListLinksInput) ([]models.Link, error) {
	if input.Limit < 0 || input.Offset < 0 {
		return nil, ErrInvalidParams
	}

	query := `
		SELECT id, original_url, short_code, user_id, is_active, created_at, expires_at, click_count
		FROM links
		WHERE user_id = $1
	`
	args := []any{input.UserID}

	if input.IsActive != nil {
		args = append(args, *input.IsActive)
		query += fmt.Sprintf(` AND is_active = $%d`, len(args))
	}

	args = append(args, input.Limit, input.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]models.Link, 0)
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(
			&link.ID,
			&link.OriginalURL,
			&link.ShortCode,
			&link.UserID,
			&link.IsActive,
			&link.CreatedAt,
			&link.ExpiresAt,
			&link.ClickCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

// Deactivate переводит ссылку в неактивное состояние. Возвращает false,
// если ссылка не найдена, не принадлежит пользователю или уже неактивна.
func (r *linkRepository) Deactivate(ctx context.Context, code string, userID int64) (bool, error) {
	query := `
		UPDATE links
		SET is_active = FALSE
		WHERE short_code = $1 AND user_id = $2 AND is_active = TRUE
	`

	result, err := r.db.Pool.Exec(ctx, query, code, userID)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate link: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// SweepExpired деактивирует все активные ссылки с истёкшим сроком действия.
// Идемпотентна и безопасна при конкурентных вызовах.
func (r *linkRepository) SweepExpired(ctx context.Context) (int64, error) {
	query := `
		UPDATE links
		SET is_active = FALSE
		WHERE is_active = TRUE AND expires_at < NOW()
	`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired links: %w", err)
	}

	return result.RowsAffected(), nil
}

// isUniqueViolation проверяет ошибку на нарушение уникальности (pgx v5)
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
