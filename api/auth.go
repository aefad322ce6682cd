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
	"errors"
	"net/http"

	"github.com/tomoncle/itemhub/auth"
	"github.com/tomoncle/itemhub/middleware"
	"github.com/tomoncle/itemhub/models"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register creates an account.
// POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in models.UserCreate
	if !decodeJSON(w, r, &in) {
		return
	}

	user, err := h.auth.Register(r.Context(), session(r), in)
	switch {
	case errors.Is(err, auth.ErrUserAlreadyExists):
		middleware.WriteDetail(w, http.StatusBadRequest, "REGISTER_USER_ALREADY_EXISTS")
		return
	case errors.Is(err, auth.ErrInvalidPassword):
		middleware.WriteDetail(w, http.StatusBadRequest, "REGISTER_INVALID_PASSWORD")
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}
	h.metrics.RecordAuthEvent("register")
	writeJSON(w, http.StatusCreated, user)
}

// Login exchanges form credentials for a bearer token.
// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, "invalid form body")
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	if username == "" || password == "" {
		middleware.WriteDetail(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	token, err := h.auth.Login(r.Context(), session(r), username, password)
	if errors.Is(err, auth.ErrBadCredentials) {
		h.metrics.RecordAuthEvent("login_failure")
		middleware.WriteDetail(w, http.StatusBadRequest, "LOGIN_BAD_CREDENTIALS")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.RecordAuthEvent("login_success")
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Logout revokes the bearer token of the request.
// POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), session(r), middleware.BearerToken(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.RecordAuthEvent("logout")
	w.WriteHeader(http.StatusNoContent)
}
