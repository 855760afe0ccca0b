package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/roomsync/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Handler *Handler
	// WS — обработчик /ws; nil — без сокетов
	WS http.HandlerFunc

	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httpmw.ExposeRequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmw.WithRequestLoggerCtx)
	r.Use(httpmw.RequestLogger)
	r.Use(recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(d.Handler.NotFound)
	r.MethodNotAllowed(d.Handler.NotFound)

	r.Get("/health", d.Handler.Health)

	// сокет живёт дольше любого таймаута запроса
	if d.WS != nil {
		r.Get("/ws", d.WS)
	}

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(d.RequestTimeout))

		api.Route("/api/rooms", func(rm chi.Router) {
			rm.Post("/", d.Handler.CreateRoom)

			rm.Route("/{roomId}", func(rr chi.Router) {
				rr.Get("/", d.Handler.GetRoom)
				rr.Patch("/tab", d.Handler.UpdateTab)
				rr.Post("/join", d.Handler.JoinRoom)
			})
		})
	})

	return r
}

// recoverer — как middleware.Recoverer, но ответ в формате {"message": ...}.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				httpmw.L(r.Context()).Error("panic recovered", "panic", rec)
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: msgInternal})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
