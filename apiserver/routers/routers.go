// Copyright 2025 Cloudbase Solutions SRL
//
//	Licensed under the Apache License, Version 2.0 (the "License"); you may
//	not use this file except in compliance with the License. You may obtain
//	a copy of the License at
//
//	     http://www.apache.org/licenses/LICENSE-2.0
//
//	Unless required by applicable law or agreed to in writing, software
//	distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//	WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//	License for the specific language governing permissions and limitations
//	under the License.

// Package routers composes the read-only management API router from
// SPEC_FULL.md §6: GET /groups, GET /groups/{name}/runners, GET /events
// and, optionally, /metrics. Webhook intake is a separate router
// (webhook.Server.Handler) mounted alongside this one by cmd/runner-manager,
// since it has its own signature-based auth rather than the api_key
// scheme guarding everything here.
package routers

import (
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harryfinbow/runner-manager/apiserver/controllers"
	"github.com/harryfinbow/runner-manager/auth"
)

// WithMetricsRouter mounts promhttp's handler under /metrics on
// parentRouter, optionally behind middleware.
func WithMetricsRouter(parentRouter *mux.Router, requireAuth bool, middleware auth.Middleware) *mux.Router {
	if parentRouter == nil {
		return nil
	}

	metricsRouter := parentRouter.PathPrefix("/metrics").Subrouter()
	if requireAuth {
		metricsRouter.Use(middleware.Middleware)
	}
	metricsRouter.Handle("/", promhttp.Handler()).Methods(http.MethodGet, http.MethodOptions)
	metricsRouter.Handle("", promhttp.Handler()).Methods(http.MethodGet, http.MethodOptions)
	return parentRouter
}

func requestLogger(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics := httpsnoop.CaptureMetrics(h, w, r)

		slog.Info(
			"access_log",
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()),
			slog.String("user_agent", r.Header.Get("User-Agent")),
			slog.String("ip", r.RemoteAddr),
			slog.Int("code", metrics.Code),
			slog.Int64("bytes", metrics.Written),
			slog.Duration("request_time", metrics.Duration),
		)
	})
}

// NewAPIRouter builds the /api/v1 management router: every route is
// guarded by authMiddleware's constant-time api_key check and wrapped
// in the teacher's httpsnoop-based access logger.
func NewAPIRouter(han *controllers.APIController, authMiddleware auth.Middleware, allowedOrigins []string) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger)

	methodsOk := handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions})
	headersOk := handlers.AllowedHeaders([]string{"X-Api-Key", "Content-Type"})
	originsOk := handlers.AllowedOrigins(allowedOrigins)
	corsMiddleware := func(next http.Handler) http.Handler {
		return handlers.CORS(methodsOk, headersOk, originsOk)(next)
	}

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(corsMiddleware)
	apiRouter.Use(authMiddleware.Middleware)

	apiRouter.Handle("/groups/", http.HandlerFunc(han.ListGroupsHandler)).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.Handle("/groups", http.HandlerFunc(han.ListGroupsHandler)).Methods(http.MethodGet, http.MethodOptions)

	apiRouter.Handle("/groups/{name}/runners/", http.HandlerFunc(han.ListGroupRunnersHandler)).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.Handle("/groups/{name}/runners", http.HandlerFunc(han.ListGroupRunnersHandler)).Methods(http.MethodGet, http.MethodOptions)

	apiRouter.Handle("/events/", http.HandlerFunc(han.ListEventsHandler)).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.Handle("/events", http.HandlerFunc(han.ListEventsHandler)).Methods(http.MethodGet, http.MethodOptions)

	return router
}
