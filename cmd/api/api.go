package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dreka/docs"
	"dreka/internal/auth"
	"dreka/internal/domain/storage"
	"dreka/internal/metrics"
	"dreka/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// subscriptions keeps a device's venue topics in line with its favourites.
type subscriptions interface {
	Sync(ctx context.Context, token string, topics []string) error
	Move(ctx context.Context, oldToken, newToken string) error
	Ping(ctx context.Context) error
}

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	subscriptions subscriptions
	gatherer      prometheus.Gatherer
	metrics       *metrics.Metrics
}

type config struct {
	addr        string
	env         string
	apiURL      string
	db          dbConfig
	redis       redisConfig
	auth        authConfig
	expo        expoConfig
	triggers    triggerConfig
	rateLimiter ratelimiter.Config
}

type dbConfig struct {
	addr         string
	maxOpenConns int
	maxIdleTime  string
}

type redisConfig struct {
	addr     string
	password string
	db       int
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	aud    string
	iss    string
}

type basicConfig struct {
	user string
	pass string
}

type expoConfig struct {
	accessToken string
}

type triggerConfig struct {
	source       string
	bindingsFile string
	pollInterval time.Duration
	retention    time.Duration
	kafka        kafkaConfig
}

type kafkaConfig struct {
	brokers []string
	topic   string
	groupID string
	relay   bool
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if app.config.rateLimiter.Enabled {
		r.Use(app.RateLimiterMiddleware)
	}

	r.Use(middleware.Timeout(60 * time.Second))

	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/v1/swagger/doc.json")))
		r.With(app.BasicAuthMiddleware()).Get("/metrics", metrics.Handler(app.gatherer).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", app.getCurrentUserHandler)
				r.Patch("/", app.updateCurrentUserHandler)
				r.Put("/push-token", app.savePushTokenHandler)
				r.Put("/favorites/{venueID}", app.addFavoriteHandler)
				r.Delete("/favorites/{venueID}", app.removeFavoriteHandler)
			})

			r.Get("/venues", app.listVenuesHandler)
			r.Route("/venues/{venueID}", func(r chi.Router) {
				r.Get("/", app.getVenueHandler)
				r.Post("/menu-requests", app.createMenuRequestHandler)
				r.Post("/ratings", app.createRatingHandler)
				r.Get("/ratings", app.listRatingsHandler)
			})

			r.Post("/suggestions", app.createSuggestionHandler)

			r.Route("/admin", func(r chi.Router) {
				r.Use(app.RequireAdmin)

				r.Route("/suggestions", func(r chi.Router) {
					r.Get("/", app.listSuggestionsHandler)
					r.Post("/{suggestionID}/approve", app.approveSuggestionHandler)
					r.Post("/{suggestionID}/reject", app.rejectSuggestionHandler)
				})

				r.Route("/venues", func(r chi.Router) {
					r.Post("/", app.createVenueHandler)
					r.Post("/{venueID}/menu-requests/{requestID}/approve", app.approveMenuRequestHandler)
					r.Post("/{venueID}/menu-requests/{requestID}/reject", app.rejectMenuRequestHandler)
					r.Put("/{venueID}/menu/{itemID}", app.updateMenuItemHandler)
					r.Delete("/{venueID}/menu/{itemID}", app.deleteMenuItemHandler)
				})
			})
		})
	})
	return r
}

// run serves mux until ctx is cancelled, then shuts down gracefully.
func (app *application) run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown <- srv.Shutdown(sctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)
	return nil
}
