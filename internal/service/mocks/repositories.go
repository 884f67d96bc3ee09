package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/v1pung/url-alias/internal/models"
	"github.com/v1pung/url-alias/internal/repository"
)

// MockLinkRepository реализует repository.LinkRepository для тестов
type MockLinkRepository struct {
	mu     sync.RWMutex
	links  map[string]*models.Link
	nextID int64
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:  make(map[string]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.ShortCode]; exists {
		return repository.ErrCodeExists
	}

	link.ID = m.nextID
	m.nextID++
	link.IsActive = true
	link.ClickCount = 0
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	stored := *link
	m.links[link.ShortCode] = &stored
	return nil
}

func (m *MockLinkRepository) GetByShortCode(ctx context.Context, code string, userID *int64) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	if userID != nil && link.UserID != *userID {
		return nil, repository.ErrLinkNotFound
	}

	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) GetAll(ctx context.Context, input models.ListLinksInput) ([]models.Link, error) {
	if input.Limit < 0 || input.Offset < 0 {
		return nil, repository.ErrInvalidParams
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.Link, 0)
	for _, link := range m.links {
		if link.UserID != input.UserID {
			continue
		}
		if input.IsActive != nil && link.IsActive != *input.IsActive {
			continue
		}
		all = append(all, *link)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if input.Offset >= len(all) {
		return []models.Link{}, nil
	}
	all = all[input.Offset:]
	if input.Limit < len(all) {
		all = all[:input.Limit]
	}

	return all, nil
}

func (m *MockLinkRepository) Deactivate(ctx context.Context, code string, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[code]
	if !exists || link.UserID != userID || !link.IsActive {
		return false, nil
	}

	link.IsActive = false
	return true, nil
}

func (m *MockLinkRepository) SweepExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var count int64
	for _, link := range m.links {
		if link.IsActive && link.ExpiresAt.Before(now) {
			link.IsActive = false
			count++
		}
	}

	return count, nil
}

// Insert кладёт ссылку с произвольными полями напрямую, минуя Create.
// Нужен тестам для подготовки просроченных ссылок.
func (m *MockLinkRepository) Insert(link *models.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link.ID = m.nextID
	m.nextID++
	stored := *link
	m.links[link.ShortCode] = &stored
}

func (m *MockLinkRepository) byID(id int64) *models.Link {
	for _, link := range m.links {
		if link.ID == id {
			return link
		}
	}
	return nil
}

// MockClickRepository реализует repository.ClickRepository для тестов.
// Держит ссылку на MockLinkRepository: запись клика атомарно обновляет
// и журнал, и счётчик, как это делает транзакция в БД.
type MockClickRepository struct {
	mu       sync.RWMutex
	linkRepo *MockLinkRepository
	clicks   map[int64][]models.Click
	nextID   int64
}

func NewMockClickRepository(linkRepo *MockLinkRepository) *MockClickRepository {
	return &MockClickRepository{
		linkRepo: linkRepo,
		clicks:   make(map[int64][]models.Click),
		nextID:   1,
	}
}

func (m *MockClickRepository) Record(ctx context.Context, linkID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.linkRepo.mu.Lock()
	defer m.linkRepo.mu.Unlock()

	link := m.linkRepo.byID(linkID)
	if link == nil {
		return repository.ErrLinkNotFound
	}

	m.clicks[linkID] = append(m.clicks[linkID], models.Click{
		ID:        m.nextID,
		LinkID:    linkID,
		ClickedAt: time.Now(),
	})
	m.nextID++
	link.ClickCount++

	return nil
}

// RecordAt добавляет клик с заданным временем (для оконных тестов)
func (m *MockClickRepository) RecordAt(linkID int64, clickedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clicks[linkID] = append(m.clicks[linkID], models.Click{
		ID:        m.nextID,
		LinkID:    linkID,
		ClickedAt: clickedAt,
	})
	m.nextID++
}

func (m *MockClickRepository) Clicks(linkID int64) []models.Click {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Click(nil), m.clicks[linkID]...)
}

func (m *MockClickRepository) GetWindowStats(ctx context.Context, userID int64, isActive *bool) ([]models.LinkStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.linkRepo.mu.RLock()
	defer m.linkRepo.mu.RUnlock()

	now := time.Now()
	stats := make([]models.LinkStats, 0)

	for _, link := range m.linkRepo.links {
		if link.UserID != userID {
			continue
		}
		if isActive != nil && link.IsActive != *isActive {
			continue
		}

		stat := models.LinkStats{
			ShortCode:   link.ShortCode,
			OriginalURL: link.OriginalURL,
		}
		for _, click := range m.clicks[link.ID] {
			if click.ClickedAt.After(now.Add(-time.Hour)) {
				stat.LastHourClicks++
			}
			if click.ClickedAt.After(now.Add(-24 * time.Hour)) {
				stat.LastDayClicks++
			}
		}
		stats = append(stats, stat)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].LastDayClicks != stats[j].LastDayClicks {
			return stats[i].LastDayClicks > stats[j].LastDayClicks
		}
		return stats[i].LastHourClicks > stats[j].LastHourClicks
	})

	return stats, nil
}

// MockCacheRepository реализует repository.CacheRepository для тестов
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, code string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *link
	m.cache[code] = &stored
	return nil
}

// SetNX пишет снимок, только если ключа ещё нет, как redis SETNX
func (m *MockCacheRepository) SetNX(ctx context.Context, code string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cache[code]; exists {
		return nil
	}
	stored := *link
	m.cache[code] = &stored
	return nil
}

// MockUserRepository реализует repository.UserRepository для тестов
type MockUserRepository struct {
	mu     sync.RWMutex
	users  map[string]*models.User
	nextID int64
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[string]*models.User),
		nextID: 1,
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.Username]; exists {
		return repository.ErrUserExists
	}

	user.ID = m.nextID
	m.nextID++
	stored := *user
	m.users[user.Username] = &stored
	return nil
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[username]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}
