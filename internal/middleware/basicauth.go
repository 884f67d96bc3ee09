package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/v1pung/url-alias/internal/models"
	"github.com/v1pung/url-alias/internal/service"
)

const userContextKey = "current_user"

// BasicAuth middleware аутентификации по HTTP Basic. Проверка пары
// логин/пароль делегируется AuthService (bcrypt-сравнение).
func BasicAuth(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			unauthorized(c, "missing_credentials", "Basic authentication required")
			return
		}

		user, err := authService.Authenticate(c.Request.Context(), username, password)
		if err != nil {
			unauthorized(c, "invalid_credentials", "Incorrect pair login/password")
			return
		}

		// Пользователь доступен последующим handler-ам через контекст
		c.Set(userContextKey, user)

		c.Next()
	}
}

func unauthorized(c *gin.Context, code, message string) {
	c.Header("WWW-Authenticate", `Basic realm="url-alias"`)
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":   code,
		"message": message,
	})
	c.Abort()
}

// CurrentUser извлекает аутентифицированного пользователя из контекста
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
