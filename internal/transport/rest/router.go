package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"provsurvey/internal/cache"
	"provsurvey/internal/service"
	"provsurvey/internal/transport/rest/handler"
	"provsurvey/internal/transport/rest/middleware"
	"provsurvey/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService   *service.AuthService
	FlowService   *service.FlowService
	ExportService *service.ExportService
	StatsService  *service.StatsService
	Sessions      cache.SessionCache
	WSHub         *ws.Hub
	Logger        *zap.Logger

	Locales       []string
	DefaultLocale string
	CookieSecure  bool

	ExportSeparator         string
	ExportInternalSeparator string
}

// NewRouter creates the router with the survey pages and the v1 API
func NewRouter(c *Container) http.Handler {
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := mux.NewRouter()
	r.StrictSlash(true)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)
	sessionMW := middleware.NewSessionMiddleware(c.AuthService, c.Sessions, c.CookieSecure, log)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	surveyHandler := handler.NewSurveyHandler(c.FlowService, sessionMW, c.Locales, c.DefaultLocale, log)
	exportHandler := handler.NewExportHandler(c.ExportService, c.ExportSeparator, c.ExportInternalSeparator, log)
	statsHandler := handler.NewStatsHandler(c.StatsService, c.FlowService.Registry().Revision(), log)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, log)

	// the access log wraps recovery so a recovered panic is logged as a 500
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(corsMiddleware)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/survey", surveyHandler.Metadata).Methods("GET", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/monitor", wsHandler.MonitorWS).Methods("GET")

	// Admin routes
	adminRoutes := v1.NewRoute().Subrouter()
	adminRoutes.Use(authMW.RequireAdmin)
	adminRoutes.HandleFunc("/exports/{receiver}", exportHandler.Export).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/stats", statsHandler.Stats).Methods("GET", "OPTIONS")

	// Respondent pages
	r.HandleFunc("/", surveyHandler.Root).Methods("GET")
	pages := r.NewRoute().Subrouter()
	pages.Use(sessionMW.Load)
	pages.HandleFunc("/{locale:[A-Za-z_-]+}/", surveyHandler.Page).Methods("GET", "POST")
	pages.HandleFunc("/{locale:[A-Za-z_-]+}/{question}/", surveyHandler.Page).Methods("GET", "POST")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
