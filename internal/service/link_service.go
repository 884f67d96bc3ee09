package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/v1pung/url-alias/internal/config"
	"github.com/v1pung/url-alias/internal/models"
	"github.com/v1pung/url-alias/internal/repository"
)

// Ошибки сервиса
var (
	ErrLinkExpired  = errors.New("link has expired")
	ErrLinkInactive = errors.New("link is inactive")
	// Деактивация намеренно не различает "не найдено" и "уже неактивна"
	ErrNotFoundOrInactive = errors.New("link not found or already deactivated")
)

// LinkService интерфейс жизненного цикла ссылок
type LinkService interface {
	CreateShortURL(ctx context.Context, originalURL string, userID int64) (*models.Link, error)
	GetByShortCode(ctx context.Context, code string, userID int64) (*models.Link, error)
	GetByShortCodePublic(ctx context.Context, code string) (*models.Link, error)
	GetAllLinks(ctx context.Context, input models.ListLinksInput) ([]models.Link, error)
	DeactivateLink(ctx context.Context, code string, userID int64) error
	LogClick(ctx context.Context, code string) (*models.Link, error)
	GetStats(ctx context.Context, userID int64, isActive *bool) ([]models.LinkStats, error)
	SweepExpired(ctx context.Context) (int64, error)
	ShortURL(code string) string
}

// linkService реализация сервиса ссылок
type linkService struct {
	linkRepo  repository.LinkRepository
	clickRepo repository.ClickRepository
	cacheRepo repository.CacheRepository
	cfg       config.LinksConfig
	baseURL   string
	now       func() time.Time
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(
	linkRepo repository.LinkRepository,
	clickRepo repository.ClickRepository,
	cacheRepo repository.CacheRepository,
	cfg config.LinksConfig,
	baseURL string,
) LinkService {
	return &linkService{
		linkRepo:  linkRepo,
		clickRepo: clickRepo,
		cacheRepo: cacheRepo,
		cfg:       cfg,
		baseURL:   baseURL,
		now:       time.Now,
	}
}

// CreateShortURL создаёт новую короткую ссылку. Конфликт кодов
// возвращается вызывающему как repository.ErrCodeExists без повтора.
func (s *linkService) CreateShortURL(ctx context.Context, originalURL string, userID int64) (*models.Link, error) {
	link := &models.Link{
		OriginalURL: originalURL,
		ShortCode:   GenerateShortCode(s.cfg.ShortCodeLength),
		UserID:      userID,
		ExpiresAt:   s.now().Add(time.Duration(s.cfg.DefaultExpiryDays) * 24 * time.Hour),
	}

	if err := s.linkRepo.Create(ctx, link); err != nil {
		return nil, err
	}

	// Кэшируем сразу: первый публичный переход обычно следует за созданием
	s.cacheLink(ctx, link)

	return link, nil
}

// GetByShortCode получает ссылку владельца с проверкой валидности
func (s *linkService) GetByShortCode(ctx context.Context, code string, userID int64) (*models.Link, error) {
	link, err := s.linkRepo.GetByShortCode(ctx, code, &userID)
	if err != nil {
		return nil, err
	}
	return s.validateLink(ctx, link)
}

// GetByShortCodePublic получает ссылку для публичного резолва: сначала из
// кэша, затем из БД. Проверки валидности применяются к любой копии, поэтому
// устаревший кэш не может вернуть просроченную ссылку как активную.
func (s *linkService) GetByShortCodePublic(ctx context.Context, code string) (*models.Link, error) {
	if link, err := s.cacheRepo.Get(ctx, code); err == nil {
		return s.validateLink(ctx, link)
	}

	link, err := s.linkRepo.GetByShortCode(ctx, code, nil)
	if err != nil {
		return nil, err
	}

	if link, err = s.validateLink(ctx, link); err != nil {
		return nil, err
	}

	s.cacheLink(ctx, link)

	return link, nil
}

// GetAllLinks возвращает ссылки пользователя с пагинацией. Перед выборкой
// выполняется sweep, чтобы только что истёкшие ссылки отразились как неактивные.
func (s *linkService) GetAllLinks(ctx context.Context, input models.ListLinksInput) ([]models.Link, error) {
	if _, err := s.linkRepo.SweepExpired(ctx); err != nil {
		return nil, err
	}

	return s.linkRepo.GetAll(ctx, input)
}

// DeactivateLink деактивирует ссылку владельца
func (s *linkService) DeactivateLink(ctx context.Context, code string, userID int64) error {
	ok, err := s.linkRepo.Deactivate(ctx, code, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFoundOrInactive
	}

	// Write-through вместо удаления ключа: кэш получает неактивный снимок.
	// Конкурентный публичный резолв, прочитавший БД до деактивации,
	// дозаполняет кэш через SetNX и не может затереть этот снимок своей
	// устаревшей активной копией. Простое удаление оставляло бы окно,
	// в котором деактивированная ссылка возвращается в кэш как активная.
	link, err := s.linkRepo.GetByShortCode(ctx, code, &userID)
	if err != nil {
		return fmt.Errorf("failed to reload deactivated link: %w", err)
	}
	if ttl := time.Until(link.ExpiresAt); ttl > 0 {
		if err := s.cacheRepo.Set(ctx, code, link, ttl); err != nil {
			return fmt.Errorf("failed to update cache for deactivated link: %w", err)
		}
	}

	return nil
}

// LogClick записывает переход по публичной ссылке и возвращает её:
// редирект обходится одним резолвом. Переход по просроченной или
// неактивной ссылке не записывается никогда.
func (s *linkService) LogClick(ctx context.Context, code string) (*models.Link, error) {
	link, err := s.GetByShortCodePublic(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.clickRepo.Record(ctx, link.ID); err != nil {
		return nil, err
	}

	return link, nil
}

// GetStats возвращает оконную статистику переходов по ссылкам пользователя
func (s *linkService) GetStats(ctx context.Context, userID int64, isActive *bool) ([]models.LinkStats, error) {
	if _, err := s.linkRepo.SweepExpired(ctx); err != nil {
		return nil, err
	}

	stats, err := s.clickRepo.GetWindowStats(ctx, userID, isActive)
	if err != nil {
		return nil, err
	}

	for i := range stats {
		stats[i].Link = s.ShortURL(stats[i].ShortCode)
	}

	return stats, nil
}

// SweepExpired деактивирует просроченные ссылки
func (s *linkService) SweepExpired(ctx context.Context) (int64, error) {
	return s.linkRepo.SweepExpired(ctx)
}

// ShortURL строит полный адрес короткой ссылки
func (s *linkService) ShortURL(code string) string {
	return s.baseURL + "/" + code
}

// validateLink проверяет существование, срок действия и активность ссылки.
// Порядок проверок фиксирован: not found -> expired -> inactive.
func (s *linkService) validateLink(ctx context.Context, link *models.Link) (*models.Link, error) {
	if link == nil {
		return nil, repository.ErrLinkNotFound
	}
	if link.ExpiresAt.Before(s.now()) {
		// Ленивый sweep: просроченная ссылка обнаружена при чтении
		if _, err := s.linkRepo.SweepExpired(ctx); err != nil {
			return nil, err
		}
		return nil, ErrLinkExpired
	}
	if !link.IsActive {
		return nil, ErrLinkInactive
	}
	return link, nil
}

// cacheLink дозаполняет кэш с TTL, ограниченным сроком действия ссылки.
// Запись условная (SetNX): путь чтения никогда не перезаписывает снимок,
// уже положенный деактивацией. Ошибка кэширования не прерывает операцию.
func (s *linkService) cacheLink(ctx context.Context, link *models.Link) {
	ttl := time.Until(link.ExpiresAt)
	if ttl <= 0 {
		return
	}
	_ = s.cacheRepo.SetNX(ctx, link.ShortCode, link, ttl)
}
