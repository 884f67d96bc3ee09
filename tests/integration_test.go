package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/v1pung/url-alias/internal/config"
	"github.com/v1pung/url-alias/internal/handler"
	"github.com/v1pung/url-alias/internal/middleware"
	"github.com/v1pung/url-alias/internal/repository"
	"github.com/v1pung/url-alias/internal/service"
	"go.uber.org/zap"
)

const testBaseURL = "http://localhost:8080"

// TestMain настраивает тестовый режим gin
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// TestEnv хранит окружение для интеграционных тестов
type TestEnv struct {
	router         *gin.Engine
	linkRepo       repository.LinkRepository
	dbContainer    testcontainers.Container
	redisContainer testcontainers.Container
	db             *repository.PostgresDB
	redis          *repository.RedisDB
}

// setupTestEnv создаёт тестовое окружение с PostgreSQL и Redis контейнерами
func setupTestEnv(t *testing.T) *TestEnv {
	ctx := t.Context()

	// Запускаем контейнер PostgreSQL
	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("urlalias"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	// Запускаем контейнер Redis
	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
	)
	require.NoError(t, err)

	// Получаем данные для подключения
	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	// Создаём подключение к БД
	db, err := repository.NewPostgresDB(config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "urlalias",
	})
	require.NoError(t, err)
	require.NoError(t, db.InitSchema(ctx))

	// Создаём подключение к Redis
	redisClient, err := repository.NewRedisClient(config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)

	// Инициализируем репозитории и сервисы
	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewClickRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	userRepo := repository.NewUserRepository(db)

	linksCfg := config.LinksConfig{
		ShortCodeLength:   6,
		DefaultExpiryDays: 1,
	}

	linkService := service.NewLinkService(linkRepo, clickRepo, cacheRepo, linksCfg, testBaseURL)
	authService := service.NewAuthService(userRepo)

	// Высокий лимит, чтобы rate limiter не мешал тестам
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: 1000,
		BurstSize:         2000,
		CleanupInterval:   time.Minute,
	})

	router := handler.NewRouter(linkService, authService, rateLimiter, zap.NewNop())

	return &TestEnv{
		router:         router,
		linkRepo:       linkRepo,
		dbContainer:    dbContainer,
		redisContainer: redisContainer,
		db:             db,
		redis:          redisClient,
	}
}

// teardown очищает ресурсы после теста
func (env *TestEnv) teardown(t *testing.T) {
	env.db.Close()
	env.redis.Close()

	ctx := t.Context()
	if env.dbContainer != nil {
		env.dbContainer.Terminate(ctx)
	}
	if env.redisContainer != nil {
		env.redisContainer.Terminate(ctx)
	}
}

type createLinkResponse struct {
	ShortURL string `json:"short_url"`
}

type linkResponse struct {
	ID          int64     `json:"id"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	ClickCount  int64     `json:"click_count"`
	ShortURL    string    `json:"short_url"`
}

type statsResponse struct {
	Link           string `json:"link"`
	OrigLink       string `json:"orig_link"`
	LastHourClicks int64  `json:"last_hour_clicks"`
	LastDayClicks  int64  `json:"last_day_clicks"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// register регистрирует пользователя через API
func (env *TestEnv) register(t *testing.T, username, password string) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
}

// createLink создаёт короткую ссылку от имени пользователя
func (env *TestEnv) createLink(t *testing.T, username, password, originalURL string) string {
	body, _ := json.Marshal(map[string]string{"original_url": originalURL})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/links", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(username, password)
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp createLinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ShortURL)

	// Код — последний сегмент короткого адреса
	return resp.ShortURL[len(testBaseURL)+1:]
}

// TestIntegration_CreateAndRedirect тестирует создание ссылки и редирект
func TestIntegration_CreateAndRedirect(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	env.register(t, "alice", "secret123")
	code := env.createLink(t, "alice", "secret123", "https://example.com/target")
	assert.Len(t, code, 6)

	t.Run("редирект на оригинальный URL", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/"+code, nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "https://example.com/target", w.Header().Get("Location"))
	})

	t.Run("несуществующая ссылка", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/nonexistent", nil)
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var errResp errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "not_found", errResp.Error)
	})

	t.Run("невалидный URL отклоняется", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"original_url": "not-a-url"})
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/links", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth("alice", "secret123")
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("создание без аутентификации", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"original_url": "https://example.com"})
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/links", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		env.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
	})
}

// TestIntegration_ClickCounting тестирует конкурентную запись переходов:
// счётчик должен сойтись с числом запросов без потерянных обновлений
func TestIntegration_ClickCounting(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	env.register(t, "alice", "secret123")
	code := env.createLink(t, "alice", "secret123", "https://example.com/popular")

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/"+code, nil)
			env.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		}()
	}
	wg.Wait()

	// Счётчик виден в листинге ссылок
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/links?limit=10&offset=0", nil)
	req.SetBasicAuth("alice", "secret123")
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var links []linkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	require.Len(t, links, 1)
	assert.Equal(t, int64(n), links[0].ClickCount)

	// Статистика за час и за сутки согласована со счётчиком
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/stats", nil)
	req.SetBasicAuth("alice", "secret123")
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stats []statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, int64(n), stats[0].LastHourClicks)
	assert.Equal(t, int64(n), stats[0].LastDayClicks)
	assert.Equal(t, "https://example.com/popular", stats[0].OrigLink)
	assert.Equal(t, testBaseURL+"/"+code, stats[0].Link)
}

// TestIntegration_Deactivate тестирует деактивацию и слитую ошибку 404
func TestIntegration_Deactivate(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	env.register(t, "alice", "secret123")
	code := env.createLink(t, "alice", "secret123", "https://example.com/temp")

	// Деактивация
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/api/v1/links/"+code+"/deactivate", nil)
	req.SetBasicAuth("alice", "secret123")
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Деактивированная ссылка больше не резолвится
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/"+code, nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusGone, w.Code)

	// Повторная деактивация и несуществующий код: одинаковый ответ
	for _, target := range []string{code, "nope42"} {
		w = httptest.NewRecorder()
		req, _ = http.NewRequest("PATCH", "/api/v1/links/"+target+"/deactivate", nil)
		req.SetBasicAuth("alice", "secret123")
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)

		var errResp errorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "not_found_or_inactive", errResp.Error)
	}
}

// TestIntegration_OwnershipScoping тестирует изоляцию ссылок между пользователями
func TestIntegration_OwnershipScoping(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	env.register(t, "alice", "secret123")
	env.register(t, "bob", "hunter22")

	aliceCode := env.createLink(t, "alice", "secret123", "https://example.com/alice")
	env.createLink(t, "bob", "hunter22", "https://example.com/bob")

	// Боб не видит ссылок Алисы в листинге
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/links", nil)
	req.SetBasicAuth("bob", "hunter22")
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var links []linkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/bob", links[0].OriginalURL)

	// Боб не может деактивировать ссылку Алисы
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("PATCH", "/api/v1/links/"+aliceCode+"/deactivate", nil)
	req.SetBasicAuth("bob", "hunter22")
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Публичный редирект работает для любого
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/"+aliceCode, nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
}

// TestIntegration_Pagination тестирует пагинацию и отклонение отрицательных границ
func TestIntegration_Pagination(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	env.register(t, "alice", "secret123")
	for i := 0; i < 3; i++ {
		env.createLink(t, "alice", "secret123", fmt.Sprintf("https://example.com/page/%d", i))
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/links?limit=2&offset=0", nil)
	req.SetBasicAuth("alice", "secret123")
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var links []linkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	assert.Len(t, links, 2)

	// Отрицательный limit отклоняется
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/links?limit=-1&offset=0", nil)
	req.SetBasicAuth("alice", "secret123")
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestIntegration_ExpiredLink тестирует ленивую деактивацию просроченной ссылки
func TestIntegration_ExpiredLink(t *testing.T) {
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}

	env := setupTestEnv(t)
	defer env.teardown(t)

	env.register(t, "alice", "secret123")
	code := env.createLink(t, "alice", "secret123", "https://example.com/shortlived")

	// Просрочиваем ссылку напрямую в БД
	_, err := env.db.Pool.Exec(t.Context(),
		`UPDATE links SET expires_at = NOW() - INTERVAL '1 hour' WHERE short_code = $1`, code)
	require.NoError(t, err)
	// Сбрасываем кэш, чтобы публичный резолв прочитал свежий снимок
	require.NoError(t, env.redis.Client.FlushAll(t.Context()).Err())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/"+code, nil)
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusGone, w.Code)

	// Ленивый sweep перевёл ссылку в неактивные
	link, err := env.linkRepo.GetByShortCode(t.Context(), code, nil)
	require.NoError(t, err)
	assert.False(t, link.IsActive)
}
