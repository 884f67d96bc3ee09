package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/v1pung/url-alias/internal/middleware"
	"github.com/v1pung/url-alias/internal/models"
	"github.com/v1pung/url-alias/internal/repository"
	"github.com/v1pung/url-alias/internal/service"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service service.LinkService
	logger  *zap.Logger
}

func NewLinkHandler(service service.LinkService, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service: service,
		logger:  logger,
	}
}

type CreateLinkRequest struct {
	OriginalURL string `json:"original_url" binding:"required,url"`
}

type CreateLinkResponse struct {
	ShortURL string `json:"short_url"`
}

type LinkResponse struct {
	models.Link
	ShortURL string `json:"short_url"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateLink godoc
// @Summary Create a short link
// @Description Create a new shortened URL for the authenticated user
// @Tags links
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} CreateLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Authentication required"})
		return
	}

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	link, err := h.service.CreateShortURL(c.Request.Context(), req.OriginalURL, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrCodeExists) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "code_exists",
				Message: "Short URL already exists",
			})
			return
		}
		h.logger.Error("Failed to create link", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to create link",
		})
		return
	}

	shortURL := h.service.ShortURL(link.ShortCode)
	c.Header("Location", "/"+link.ShortCode)
	c.JSON(http.StatusCreated, CreateLinkResponse{ShortURL: shortURL})
}

// GetLinks godoc
// @Summary List links
// @Description List the authenticated user's links with pagination and activity filter
// @Tags links
// @Produce json
// @Security BasicAuth
// @Param is_active query bool false "Filter by activation state"
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {array} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/links [get]
func (h *LinkHandler) GetLinks(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Authentication required"})
		return
	}

	input := models.ListLinksInput{
		UserID: user.ID,
		Limit:  10,
		Offset: 0,
	}

	var parseErr error
	if v := c.Query("limit"); v != "" {
		input.Limit, parseErr = strconv.Atoi(v)
	}
	if v := c.Query("offset"); v != "" && parseErr == nil {
		input.Offset, parseErr = strconv.Atoi(v)
	}
	if v := c.Query("is_active"); v != "" && parseErr == nil {
		var isActive bool
		isActive, parseErr = strconv.ParseBool(v)
		input.IsActive = &isActive
	}
	if parseErr != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_params",
			Message: "Invalid query parameters",
		})
		return
	}

	links, err := h.service.GetAllLinks(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidParams) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_params",
				Message: "Invalid pagination parameters",
			})
			return
		}
		h.logger.Error("Failed to list links", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list links",
		})
		return
	}

	response := make([]LinkResponse, 0, len(links))
	for _, link := range links {
		response = append(response, LinkResponse{
			Link:     link,
			ShortURL: h.service.ShortURL(link.ShortCode),
		})
	}

	c.JSON(http.StatusOK, response)
}

// DeactivateLink godoc
// @Summary Deactivate a short link
// @Description Deactivate the authenticated user's link; deactivation is permanent
// @Tags links
// @Produce json
// @Security BasicAuth
// @Param code path string true "Short code"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code}/deactivate [patch]
func (h *LinkHandler) DeactivateLink(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Authentication required"})
		return
	}

	code := c.Param("code")

	if err := h.service.DeactivateLink(c.Request.Context(), code, user.ID); err != nil {
		if errors.Is(err, service.ErrNotFoundOrInactive) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found_or_inactive",
				Message: "Link not found or already deactivated",
			})
			return
		}
		h.logger.Error("Failed to deactivate link", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to deactivate link",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link " + code + " deactivated"})
}

// GetStats godoc
// @Summary Get click statistics
// @Description Windowed click counts (last hour / last day) for the user's links,
// @Description ordered by daily clicks
// @Tags links
// @Produce json
// @Security BasicAuth
// @Param is_active query bool false "Filter by activation state"
// @Success 200 {array} models.LinkStats
// @Router /api/v1/stats [get]
func (h *LinkHandler) GetStats(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "Authentication required"})
		return
	}

	var isActive *bool
	if v := c.Query("is_active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_params",
				Message: "Invalid is_active value",
			})
			return
		}
		isActive = &parsed
	}

	stats, err := h.service.GetStats(c.Request.Context(), user.ID, isActive)
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to get stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Redirect godoc
// @Summary Redirect to original URL
// @Description Resolve a short code publicly, log the click and redirect
// @Tags public
// @Produce json
// @Param code path string true "Short code"
// @Success 307 {object} nil
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /{code} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	// Один резолв на редирект: LogClick возвращает прошедшую проверки
	// ссылку, а строка клика и счётчик фиксируются одной транзакцией
	// до ответа клиенту
	link, err := h.service.LogClick(c.Request.Context(), code)
	if err != nil {
		h.handleResolveError(c, code, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, link.OriginalURL)
}

func (h *LinkHandler) handleResolveError(c *gin.Context, code string, err error) {
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
	case errors.Is(err, service.ErrLinkExpired):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "expired",
			Message: "Link has expired",
		})
	case errors.Is(err, service.ErrLinkInactive):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "inactive",
			Message: "Link is inactive",
		})
	default:
		h.logger.Error("Failed to resolve link", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to resolve link",
		})
	}
}

// HealthCheck godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
