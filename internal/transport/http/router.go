package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"trivia-round-service/internal/app"
	"trivia-round-service/internal/logger"
)

// NewRouter wires the websocket endpoint and the small read-only JSON API.
func NewRouter(ws *WSHandler, service *app.RoundService, categories CategoryIndex, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log.WithPrefix("http")))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, categories.Categories())
		})
		r.Get("/users/{userID}/progress", func(w http.ResponseWriter, r *http.Request) {
			progress, err := service.Progress(r.Context(), chi.URLParam(r, "userID"))
			if err != nil {
				logger.FromContext(r.Context()).Error("load progress: %v", err)
				writeJSON(w, http.StatusServiceUnavailable, errorPayload{Message: retryMessage})
				return
			}
			writeJSON(w, http.StatusOK, progress)
		})
	})
	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			// chi's wrapper keeps http.Hijacker available for websocket upgrades
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			reqLog := log.WithFields(map[string]any{"method": r.Method, "path": r.URL.Path})
			next.ServeHTTP(ww, r.WithContext(logger.NewContext(r.Context(), reqLog)))
			reqLog.Debug("request completed: status=%d bytes=%d in %v", ww.Status(), ww.BytesWritten(), time.Since(start))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
