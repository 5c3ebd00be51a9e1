package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// RouterConfig lists the handlers and middleware the router mounts.
type RouterConfig struct {
	Bot            http.Handler
	API            *APIHandler
	WS             *WSHandler
	Auth           *Authenticator
	Members        MembershipChecker
	RateLimit      *RateLimiter
	AllowedOrigins []string
}

// NewRouter wires every route. The bot endpoint is not behind the tab
// bearer auth; Bot Framework authenticates its own callers.
func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/api/messages", cfg.Bot).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(cfg.Auth.Middleware)
	api.HandleFunc("/search", cfg.API.Search).Methods(http.MethodPost)

	teamScoped := api.NewRoute().Subrouter()
	teamScoped.Use(RequireTeamMember(cfg.Members, cfg.API.log))
	teamScoped.HandleFunc("/leaderboard/{teamId}/{tabId}", cfg.API.GetLeaderboard).Methods(http.MethodGet)
	teamScoped.HandleFunc("/tabconfiguration/{teamId}", cfg.API.ConfigureTab).Methods(http.MethodPost)

	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(cfg.Auth.Middleware)
	ws.Use(RequireTeamMember(cfg.Members, cfg.API.log))
	ws.HandleFunc("", cfg.WS.ServeWS).Methods(http.MethodGet)

	var handler http.Handler = router
	if cfg.RateLimit != nil {
		handler = cfg.RateLimit.Middleware(handler)
	}

	c := cors.New(corsOptions(cfg.AllowedOrigins))
	return c.Handler(handler)
}

// corsOptions allows any origin without credentials unless explicit origins
// are configured. Credentials are never combined with a wildcard.
func corsOptions(allowed []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:         300,
	}
	if len(allowed) == 0 {
		return opts
	}
	for _, origin := range allowed {
		if origin == "*" {
			return opts
		}
	}
	opts.AllowedOrigins = allowed
	opts.AllowCredentials = true
	return opts
}
