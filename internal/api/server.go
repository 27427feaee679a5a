package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tutorbook/internal/cache"
	"tutorbook/internal/db"
	"tutorbook/internal/slots"
)

// Server exposes the availability and booking HTTP API.
type Server struct {
	db           *db.DB
	slots        *slots.Service
	cache        *cache.SlotCache
	log          *zerolog.Logger
	maxRangeDays int
	maxPerIP     int
}

// NewServer wires the API over the store, the slot service and the optional
// response cache.
func NewServer(database *db.DB, slotService *slots.Service, slotCache *cache.SlotCache, logger *zerolog.Logger, maxRangeDays, maxPerIP int) *Server {
	if maxRangeDays <= 0 {
		maxRangeDays = 90
	}
	if maxPerIP <= 0 {
		maxPerIP = 50
	}
	return &Server{
		db:           database,
		slots:        slotService,
		cache:        slotCache,
		log:          logger,
		maxRangeDays: maxRangeDays,
		maxPerIP:     maxPerIP,
	}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(httprate.LimitByIP(s.maxPerIP, time.Second))
	r.Use(s.requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tutors/{tutorID}/availability", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.Put("/", s.handlePutProfile)
			r.Post("/exceptions", s.handleUpsertException)
			r.Delete("/exceptions/{date}", s.handleDeleteException)
		})
		r.Get("/slots", s.handleQuerySlots)
		r.Post("/lessons", s.handleBookLesson)
		r.Delete("/lessons/{lessonID}", s.handleCancelLesson)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
