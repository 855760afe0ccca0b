package httpmw

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ExposeRequestID — отдаёт id запроса клиенту в X-Request-ID.
// Ставится после middleware.RequestID, который id генерирует или берёт из заголовка.
func ExposeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set(middleware.RequestIDHeader, reqID)
		}
		next.ServeHTTP(w, r)
	})
}
