/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/tomoncle/itemhub/auth"
	"github.com/tomoncle/itemhub/database"
	"github.com/tomoncle/itemhub/metrics"
	"github.com/tomoncle/itemhub/middleware"
	"github.com/tomoncle/itemhub/repository"
	"github.com/uptrace/bun"
)

// Options carries the router dependencies. Cache, Gatherer, Recorder and
// RateLimiter are optional.
type Options struct {
	APIPrefix   string
	CORS        middleware.CORSConfig
	DB          *bun.DB
	Health      DatabaseHealth
	Cache       Pinger
	Auth        *auth.Service
	Items       *repository.ItemRepository
	Recorder    metrics.Recorder
	Gatherer    prometheus.Gatherer
	RateLimiter *middleware.RateLimiter
	Logger      *logrus.Logger
}

// NewRouter builds the HTTP handler. Only routes below the API prefix take a
// database session, so probes and scrapes never wait for one.
func NewRouter(opts Options) *chi.Mux {
	if opts.Recorder == nil {
		opts.Recorder = metrics.Noop{}
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}
	h := NewHandler(opts.Auth, opts.Items, opts.Recorder, opts.Logger)
	health := NewHealthHandler(opts.Health, opts.Cache)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(middleware.CORS(opts.CORS))
	r.Use(middleware.Metrics(opts.Recorder))

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(opts.Gatherer))
	}

	r.Route(opts.APIPrefix, func(r chi.Router) {
		r.Get("/meta/ping", Ping)
		r.Head("/meta/ping", Ping)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Session(database.NewSessionProvider(opts.DB), opts.Logger))
			r.Use(middleware.Authenticate(opts.Auth, opts.Logger))

			r.Route("/auth", func(r chi.Router) {
				if opts.RateLimiter != nil {
					r.Use(opts.RateLimiter.Middleware)
				}
				r.Post("/register", h.Register)
				r.Post("/login", h.Login)
				r.With(middleware.RequireUser).Post("/logout", h.Logout)
			})

			r.Route("/users", func(r chi.Router) {
				r.With(middleware.RequireUser).Get("/me", h.CurrentUser)
				r.With(middleware.RequireUser).Patch("/me", h.UpdateCurrentUser)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireSuperuser)
					r.Get("/", h.ListUsers)
					r.Get("/{id}", h.GetUser)
					r.Patch("/{id}", h.UpdateUser)
					r.Delete("/{id}", h.DeleteUser)
				})
			})

			r.Route("/items", func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Get("/", h.ListItems)
				r.Post("/", h.CreateItem)
				r.Get("/{id}", h.GetItem)
				r.Put("/{id}", h.UpdateItem)
				r.Delete("/{id}", h.DeleteItem)
			})
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	return r
}
