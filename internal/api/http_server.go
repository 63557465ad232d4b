package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"hotelier/internal/availability"
	"hotelier/internal/config"
	"hotelier/internal/domain"
	"hotelier/internal/metrics"
	"hotelier/internal/pricing"
	"hotelier/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPServer отдает HTTP API поверх сервисного слоя.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings *service.BookingService
	calc     *availability.Calculator
	pricer   *pricing.Engine
	cache    domain.AvailabilityCache
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	bookings *service.BookingService,
	calc *availability.Calculator,
	pricer *pricing.Engine,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		calc:     calc,
		pricer:   pricer,
		auth:     NewHTTPAuth(cfg),
		logger:   logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// WithCache подключает кэш для витрины доступности. Без него каждый запрос
// идет в хранилище.
func (s *HTTPServer) WithCache(cache domain.AvailabilityCache) *HTTPServer {
	s.cache = cache
	return s
}

// Handler собирает маршруты и middleware. Выделен для httptest.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/bookings", s.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}", s.handleGetBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}/history", s.handleBookingHistory)
	mux.HandleFunc("POST /api/v1/bookings/{id}/events", s.handleBookingEvent)
	mux.HandleFunc("GET /api/v1/bookings/by-code/{code}", s.handleGetBookingByCode)

	mux.HandleFunc("POST /api/v1/holds", s.handleCreateHold)
	mux.HandleFunc("POST /api/v1/holds/{id}/extend", s.handleExtendHold)
	mux.HandleFunc("DELETE /api/v1/holds/{id}", s.handleReleaseHold)

	mux.HandleFunc("GET /api/v1/availability", s.handleAvailability)
	mux.HandleFunc("GET /api/v1/availability/calendar", s.handleAvailabilityCalendar)

	mux.HandleFunc("POST /api/v1/pricing/quote", s.handlePricingQuote)
	mux.HandleFunc("POST /api/v1/pricing/validate", s.handlePricingValidate)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.loggingMiddleware(s.auth.Wrap(mux))
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("x-request-id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("x-request-id", requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		metrics.IncHTTP(r.URL.Path, strconv.Itoa(recorder.status))

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
