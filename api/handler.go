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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/tomoncle/itemhub/auth"
	"github.com/tomoncle/itemhub/database"
	"github.com/tomoncle/itemhub/metrics"
	"github.com/tomoncle/itemhub/middleware"
	"github.com/tomoncle/itemhub/models"
	"github.com/tomoncle/itemhub/repository"
	"github.com/uptrace/bun"
)

const maxBodyBytes = 1 << 20

// Handler serves the endpoints below the API prefix.
type Handler struct {
	auth    *auth.Service
	items   *repository.ItemRepository
	metrics metrics.Recorder
	logger  *logrus.Logger
}

func NewHandler(authService *auth.Service, items *repository.ItemRepository, rec metrics.Recorder, logger *logrus.Logger) *Handler {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Handler{auth: authService, items: items, metrics: rec, logger: logger}
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusNotFound)
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeDetail answers with the standard status text as detail.
func writeDetail(w http.ResponseWriter, status int) {
	middleware.WriteDetail(w, status, http.StatusText(status))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return false
	}
	return true
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func session(r *http.Request) bun.IDB {
	return database.SessionFrom(r.Context())
}

// fail maps storage and validation errors to responses. Anything unexpected
// is logged and answered with 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeDetail(w, http.StatusNotFound)
	case errors.Is(err, repository.ErrInvalidValue),
		errors.Is(err, models.ErrTitleRequired),
		errors.Is(err, models.ErrInvalidEmail):
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
	case database.IsDuplicateKey(err):
		writeDetail(w, http.StatusConflict)
	case database.IsConstraintViolation(err):
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, "constraint violation")
	default:
		h.logger.WithFields(logrus.Fields{
			"request_id": middleware.GetRequestID(r.Context()),
			"req_method": r.Method,
			"req_uri":    r.URL.Path,
			"error":      err,
		}).Error("request failed")
		writeDetail(w, http.StatusInternalServerError)
	}
}
