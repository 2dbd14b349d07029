package rest

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"quizflow/internal/transport/rest/handler"
	"quizflow/internal/transport/rest/middleware"
	"quizflow/internal/transport/ws"
)

// Authenticator covers ops login and both token kinds
type Authenticator interface {
	handler.Authenticator
	middleware.TokenValidator
}

// Container holds all dependencies for the router
type Container struct {
	Auth           Authenticator
	Quiz           handler.QuizService
	Stats          handler.FunnelReader
	WSHub          *ws.Hub
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.Auth)
	quizHandler := handler.NewQuizHandler(c.Quiz, log)
	opsHandler := handler.NewOpsHandler(c.Quiz, c.Stats, log)
	wsHandler := ws.NewHandler(c.WSHub, c.Auth, c.AllowedOrigins, log)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.Auth)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.AllowedOrigins))
	r.Use(middleware.Logging(log.Named("http")))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Quiz taker routes, mirrored under /api/quiz and /api/requirements
	api := r.PathPrefix("/api/{flow:quiz|requirements}").Subrouter()
	api.HandleFunc("/start", quizHandler.Start).Methods("POST", "OPTIONS")
	api.HandleFunc("/catalog/{quizId}", quizHandler.Catalog).Methods("GET", "OPTIONS")

	sessionRoutes := api.NewRoute().Subrouter()
	sessionRoutes.Use(authMW.RequireSession)
	sessionRoutes.HandleFunc("/answer", quizHandler.Answer).Methods("POST", "OPTIONS")
	sessionRoutes.HandleFunc("/progress", quizHandler.Progress).Methods("PATCH", "OPTIONS")
	sessionRoutes.HandleFunc("/interactions", quizHandler.Interactions).Methods("POST", "OPTIONS")
	sessionRoutes.HandleFunc("/complete", quizHandler.Complete).Methods("POST", "OPTIONS")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket routes (token in query param)
	v1.HandleFunc("/ws/ops/{quizId}", wsHandler.OpsFeed).Methods("GET")

	// Ops routes (require ops auth)
	opsRoutes := v1.PathPrefix("/ops").Subrouter()
	opsRoutes.Use(authMW.RequireOps)
	opsRoutes.HandleFunc("/sessions/{id}", opsHandler.Session).Methods("GET", "OPTIONS")
	opsRoutes.HandleFunc("/funnel/{quizId}", opsHandler.Funnel).Methods("GET", "OPTIONS")

	return r
}

// corsMiddleware echoes an allowed Origin. An empty list or "*" allows any origin.
func corsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", strings.Join([]string{"GET", "POST", "PATCH", "OPTIONS"}, ", "))
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
