package handler

import (
	"net/http"

	"github.com/Dan9191/gente-bank/internal/auth"
	"github.com/Dan9191/gente-bank/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every route of the API
func NewRouter(h *Handler, tokens *auth.TokenIssuer, loginLimiter *middleware.RateLimiter, log *logrus.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.TraceID, middleware.Logging(log), middleware.Metrics)

	// Public routes
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.Handle("/auth/login", loginLimiter.Middleware(http.HandlerFunc(h.Login))).Methods(http.MethodPost)
	r.HandleFunc("/auth/withdraw", h.Withdraw).Methods(http.MethodPut)
	r.HandleFunc("/auth/deposit", h.Deposit).Methods(http.MethodPut)
	r.HandleFunc("/auth/delete", h.Delete).Methods(http.MethodDelete)

	// Protected routes
	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(tokens, log))
	protected.HandleFunc("/auth/profile", h.Profile).Methods(http.MethodGet, http.MethodPost)
	protected.HandleFunc("/auth/update", h.Update).Methods(http.MethodPut)
	protected.HandleFunc("/auth/statement", h.Statement).Methods(http.MethodPost)

	return r
}
