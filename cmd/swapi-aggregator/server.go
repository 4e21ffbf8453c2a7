package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/swapi-aggregator/pkg/logging"
	"github.com/Sternrassler/swapi-aggregator/pkg/metrics"
	"github.com/Sternrassler/swapi-aggregator/pkg/pagination"
	"github.com/Sternrassler/swapi-aggregator/pkg/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Plain-text failure bodies.
const (
	msgAPIError      = "API Error"
	msgArgumentError = "URL Argument error"
)

type handlers struct {
	svc   *service.Service
	ready func(ctx context.Context) error
}

// newRouter wires the HTTP surface. A nil ready func means always ready.
func newRouter(svc *service.Service, ready func(ctx context.Context) error) http.Handler {
	h := &handlers{svc: svc, ready: ready}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler)
	r.Get("/ready", h.readyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/", indexHandler)
	r.Get("/characters", h.charactersHandler)
	r.Get("/characters/", h.charactersHandler)
	r.Get("/character/", h.characterHandler)
	r.Get("/character/{name}", h.characterHandler)

	fixed := h.residentsHandler(pagination.StrategyFixed)
	r.Get("/planet-residents", fixed)
	r.Get("/planet-residents/", fixed)

	cursor := h.residentsHandler(pagination.StrategyCursor)
	r.Get("/extensible-residents", cursor)
	r.Get("/extensible-residents/", cursor)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (h *handlers) readyHandler(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.ready(ctx); err != nil {
			log.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "Error budget backend unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Ready")
}

type routeInfo struct {
	Path        string `json:"path"`
	Description string `json:"description"`
}

var routes = []routeInfo{
	{"/characters/", "People sorted by ?sort= (default name), windowed by ?pg=1..5"},
	{"/character/{name}", "People whose name matches"},
	{"/planet-residents/", "Resident names keyed by planet name, fixed page range"},
	{"/extensible-residents/", "Resident names keyed by planet name, all pages"},
	{"/health", "Liveness"},
	{"/ready", "Readiness"},
	{"/metrics", "Prometheus metrics"},
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"routes": routes})
}

func (h *handlers) charactersHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	vm, err := h.svc.Characters(r.Context(), service.ListRequest{
		Route: r.URL.Path,
		Sort:  query.Get("sort"),
		Page:  query.Get("pg"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, vm)
}

func (h *handlers) characterHandler(w http.ResponseWriter, r *http.Request) {
	vm, err := h.svc.CharacterByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, vm)
}

func (h *handlers) residentsHandler(strategy pagination.Strategy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mapping, err := h.svc.PlanetResidents(r.Context(), strategy)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, mapping)
	}
}

// writeError maps service errors to the plain-text failure responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.With().
		Str("path", r.URL.Path).
		Str("request_id", middleware.GetReqID(r.Context())).
		Logger()

	if service.IsInputError(err) {
		logger.Warn().Err(err).Msg("Rejected request")
		writeText(w, http.StatusBadRequest, msgArgumentError)
		return
	}

	logger.Error().Err(err).Msg("Upstream request failed")
	writeText(w, http.StatusBadGateway, msgAPIError)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	io.WriteString(w, msg)
}

func writeJSON(w http.ResponseWriter, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
