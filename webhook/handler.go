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

package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/metrics"
	"github.com/harryfinbow/runner-manager/params"
)

// Server wires the HTTP surface for event intake: signature
// verification followed by a non-blocking enqueue onto Dispatcher.
type Server struct {
	dispatcher *Dispatcher
	secret     string
	logger     *slog.Logger
}

// NewServer constructs a Server that verifies incoming events against
// secret (empty disables verification) and hands accepted events to
// dispatcher.
func NewServer(dispatcher *Dispatcher, secret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{dispatcher: dispatcher, secret: secret, logger: logger}
}

// Handler returns the http.Handler to mount, wrapped with the
// teacher's CORS/recovery middleware stack.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/webhooks", s.handleEvent).Methods(http.MethodPost)

	methodsOk := handlers.AllowedMethods([]string{http.MethodPost})
	headersOk := handlers.AllowedHeaders([]string{"X-Hub-Signature-256", "X-Github-Event", "Content-Type"})
	originsOk := handlers.AllowedOrigins(allowedOrigins)

	return handlers.RecoveryHandler()(handlers.CORS(methodsOk, headersOk, originsOk)(router))
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, runnerErrors.NewBadRequestError("reading request body: %v", err))
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if signature == "" {
		signature = r.Header.Get("X-Hub-Signature")
	}
	if err := ValidateSignature(signature, s.secret, body); err != nil {
		s.logger.Warn("rejecting webhook", slog.Any("error", err))
		metrics.WebhooksReceived.WithLabelValues("false", "signature").Inc()
		writeError(w, err)
		return
	}

	eventType := r.Header.Get("X-Github-Event")
	if eventType != "workflow_job" {
		// Acknowledge without side effects (spec.md §4.6).
		metrics.WebhooksReceived.WithLabelValues("true", "ignored_event_type").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	var event params.WorkflowJob
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.WebhooksReceived.WithLabelValues("false", "malformed_payload").Inc()
		writeError(w, runnerErrors.NewBadRequestError("invalid workflow_job payload: %v", err))
		return
	}

	if !s.dispatcher.Enqueue(event) {
		s.logger.Warn("webhook queue full, rejecting event", slog.String("action", string(event.Action)))
		metrics.WebhooksReceived.WithLabelValues("true", "queue_full").Inc()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	metrics.WebhooksReceived.WithLabelValues("true", "accepted").Inc()

	s.logger.DebugContext(ctx, "webhook scheduled", slog.String("action", string(event.Action)))
	w.WriteHeader(http.StatusAccepted)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case runnerErrors.IsUnauthorized(err):
		status = http.StatusUnauthorized
	case runnerErrors.IsBadRequest(err):
		status = http.StatusBadRequest
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
