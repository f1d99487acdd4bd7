package mapview

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/mapinfo/internal/model"
	"github.com/sells-group/mapinfo/internal/session"
)

// State is the read side of a session served over HTTP.
type State interface {
	Pins() []*model.Place
	Selected() *model.Place
	Stats() session.Stats
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Session session.Stats `json:"session"`
	Clients int           `json:"clients"`
}

// NewRouter mounts the websocket hub and the read-only JSON API.
func NewRouter(hub *Hub, state State) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ws", hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))

		r.Get("/pins", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/geo+json")
			w.WriteHeader(http.StatusOK)
			if err := json.NewEncoder(w).Encode(PlacesCollection(state.Pins())); err != nil {
				zap.L().Warn("mapview: encode pins", zap.Error(err))
			}
		})
		r.Get("/places/selected", func(w http.ResponseWriter, r *http.Request) {
			p := state.Selected()
			if p == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no place selected"})
				return
			}
			writeJSON(w, http.StatusOK, NewPlaceMessage(p))
		})
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, StatsResponse{
				Session: state.Stats(),
				Clients: hub.ClientCount(),
			})
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("mapview: encode response", zap.Error(err))
	}
}
