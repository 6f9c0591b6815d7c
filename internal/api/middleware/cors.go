// cors.go — CORS для браузерного клиента медиаплеера.
package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS возвращает middleware с разрешёнными origin из конфигурации.
// Credentials разрешены: клиент передаёт токен в cookie.
// Заголовки Range-ответов открыты для чтения из JavaScript.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Range"},
		ExposedHeaders:   []string{"Content-Range", "Accept-Ranges", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
